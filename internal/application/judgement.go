package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ahrav/judgebench/internal/domain"
)

const judgementSchemaName = "judgement.schema.json"

// judgementSchemaJSON describes the judge output. total_rating may be a
// string or a number; extra keys are tolerated.
const judgementSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "evaluation": {"type": "string"},
    "total_rating": {"type": ["string", "number"]},
    "feedback": {"type": "string"}
  },
  "required": ["evaluation", "total_rating", "feedback"]
}`

var (
	schemaPrinter   = message.NewPrinter(language.English)
	judgementSchema = mustCompileSchema(judgementSchemaJSON, judgementSchemaName)
)

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// JudgementSchema returns the JSON schema judge responses must satisfy. It
// is sent as the response format when structured judge output is enabled.
func JudgementSchema() json.RawMessage {
	return json.RawMessage(judgementSchemaJSON)
}

// ParseJudgement decodes the raw judge reply for pair index. The reply must
// be a single JSON object; surrounding whitespace is the only tolerated
// decoration.
func ParseJudgement(index int, raw string) (domain.Judgement, error) {
	parseErr := func(err error) error {
		return &domain.JudgementParseError{Index: index, Raw: raw, Err: err}
	}

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return domain.Judgement{}, parseErr(fmt.Errorf("invalid JSON: %w", err))
	}

	if err := judgementSchema.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return domain.Judgement{}, parseErr(err)
		}
		var msgs []string
		collectSchemaErrors(ve, &msgs)
		return domain.Judgement{}, parseErr(fmt.Errorf("schema violation: %s", strings.Join(msgs, "; ")))
	}

	var j domain.Judgement
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return domain.Judgement{}, parseErr(err)
	}
	return j, nil
}

func collectSchemaErrors(ve *jsonschema.ValidationError, msgs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*msgs = append(*msgs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(schemaPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, msgs)
	}
}
