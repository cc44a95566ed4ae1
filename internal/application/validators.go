package application

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"text/template/parse"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Template fields that every judge prompt must reference.
const (
	questionMarker = "Question"
	answerMarker   = "Answer"
)

var (
	errMissingQuestionMarker = errors.New("judge prompt must reference {{.Question}}")
	errMissingAnswerMarker   = errors.New("judge prompt must reference {{.Answer}}")
)

// newConfigValidator returns a validator that reports fields by their YAML
// key and understands the custom tags used by Config.
func newConfigValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	if err := RegisterConfigValidators(v); err != nil {
		return nil, err
	}
	return v, nil
}

// RegisterConfigValidators registers the custom validation tags used by
// Config:
//   - modelspec: a model id, optionally prefixed with "provider/"
func RegisterConfigValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("modelspec", validateModelSpec); err != nil {
		return fmt.Errorf("failed to register modelspec validator: %w", err)
	}
	return nil
}

// validateModelSpec rejects ids containing whitespace or empty path
// segments, such as "openai/" or "/llama3".
func validateModelSpec(fl validator.FieldLevel) bool {
	spec := fl.Field().String()
	if spec == "" {
		return false
	}
	if strings.IndexFunc(spec, unicode.IsSpace) >= 0 {
		return false
	}
	for _, seg := range strings.Split(spec, "/") {
		if seg == "" {
			return false
		}
	}
	return true
}

// describeFieldError turns a validator failure into a readable error.
func describeFieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "required_without":
		return fmt.Errorf("%s is required unless load_messages is set", fe.Field())
	case "min":
		return fmt.Errorf("%s must be at least %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Errorf("%s must be at most %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "modelspec":
		return fmt.Errorf("%s %q is not a valid model id", fe.Field(), fe.Value())
	default:
		return fmt.Errorf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}

// configKey converts a validator namespace such as "Config.llm.timeout" into
// the YAML key path "llm.timeout".
func configKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// parseJudgeTemplate parses a judge prompt and checks that it references
// both the question and the answer.
func parseJudgeTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("judge_prompt").
		Option("missingkey=error").
		Funcs(judgeTemplateFuncs()).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid judge prompt template: %w", err)
	}

	fields := make(map[string]bool)
	if tmpl.Tree != nil && tmpl.Tree.Root != nil {
		collectFields(tmpl.Tree.Root, fields)
	}
	if !fields[questionMarker] {
		return nil, errMissingQuestionMarker
	}
	if !fields[answerMarker] {
		return nil, errMissingAnswerMarker
	}
	return tmpl, nil
}

// collectFields records the top-level field names referenced anywhere in
// the template tree.
func collectFields(node parse.Node, fields map[string]bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			collectFields(child, fields)
		}
	case *parse.ActionNode:
		collectFields(n.Pipe, fields)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			collectFields(cmd, fields)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			collectFields(arg, fields)
		}
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			fields[n.Ident[0]] = true
		}
	case *parse.ChainNode:
		collectFields(n.Node, fields)
	case *parse.IfNode:
		collectBranch(&n.BranchNode, fields)
	case *parse.RangeNode:
		collectBranch(&n.BranchNode, fields)
	case *parse.WithNode:
		collectBranch(&n.BranchNode, fields)
	case *parse.TemplateNode:
		collectFields(n.Pipe, fields)
	}
}

func collectBranch(b *parse.BranchNode, fields map[string]bool) {
	collectFields(b.Pipe, fields)
	collectFields(b.List, fields)
	if b.ElseList != nil {
		collectFields(b.ElseList, fields)
	}
}
