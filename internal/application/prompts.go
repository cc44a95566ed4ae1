package application

// DefaultJudgeSystemPrompt is the rubric sent as the system message of every
// judge conversation unless judge_system_prompt overrides it.
const DefaultJudgeSystemPrompt = `
You will be given a user_question and system_answer couple.
Your task is to provide a 'total rating' scoring how well the system_answer answers the user concerns expressed in the user_question.
Give your answer on a scale of 1 to 100, where 1 means that the system_answer is not helpful at all, and 100 means that the system_answer completely and helpfully addresses the user_question.

Here is the scale you should use to build your answer:
10: The system_answer is terrible: completely irrelevant to the question asked, or very partial
30: The system_answer is mostly not helpful: misses some key aspects of the question
60: The system_answer is mostly helpful: provides support, but still could be improved
90: The system_answer is excellent: relevant, direct, detailed, and addresses all the concerns raised in the question

Provide your feedback as JSON as follows with just the result, no other text:

{
    "evaluation": "(your rationale for the rating, as a text)",
    "total_rating": "(your rating, as a number between 1 and 100)",
    "feedback": "(How you think it could be improved)",
}
`

// DefaultJudgePrompt is the judge user-message template. The template data
// is a judgePromptData value.
const DefaultJudgePrompt = `
Now here are the question and answer.

Question: {{.Question}}
Answer: {{.Answer}}
`

// judgePromptData is the data passed to the judge prompt template.
type judgePromptData struct {
	// Question is the user prompt being judged.
	Question string
	// Answer is the subject model's reply.
	Answer string
	// Turn is the 1-based position of the pair in the transcript.
	Turn int
	// Options are the judge inference options from the configuration.
	Options map[string]any
}
