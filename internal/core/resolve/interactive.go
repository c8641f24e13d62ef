package resolve

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Prompter is the external collaborator spec §6 names: something that can
// put a question to a human (or a fixture, in tests) and return raw text.
// kind/options/def are passed through verbatim so a terminal prompter can
// render "[y/n]", numbered choices, etc.
type Prompter interface {
	Prompt(kind InputKind, id, promptText, help string, options []string, def string) (string, error)
}

// InteractiveResolver drives a Prompter through spec §4.5's re-prompt
// loop: invalid input reprompts instead of failing the whole invocation.
type InteractiveResolver struct {
	Prompter Prompter
}

var fold = cases.Fold()

func foldEqual(a, b string) bool {
	return fold.String(a) == fold.String(b)
}

func (r *InteractiveResolver) Resolve(spec InputSpec) (string, bool, error) {
	def := ""
	if spec.HasDefault {
		def = spec.Default
	}
	for {
		raw, err := r.Prompter.Prompt(spec.Kind, spec.ID, spec.PromptText, spec.Help, spec.Options, def)
		if err != nil {
			return "", false, err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			if spec.HasDefault {
				return spec.Default, true, nil
			}
			if spec.Optional {
				return "", false, nil
			}
			continue // required, no default: re-prompt rather than accept empty
		}
		val, ok := parseResponse(spec, raw)
		if !ok {
			continue
		}
		return val, true, nil
	}
}

// parseResponse implements the per-kind parsing/validation rules of spec
// §4.5: bool accepts y/yes/n/no case-insensitively; enum accepts a
// 1-based index or a case-insensitive match of a declared option; list
// accepts space-separated indices, de-duplicated, each resolved to its
// option text; text is accepted verbatim.
func parseResponse(spec InputSpec, raw string) (string, bool) {
	switch spec.Kind {
	case KindBool:
		switch {
		case foldEqual(raw, "y") || foldEqual(raw, "yes") || foldEqual(raw, "true"):
			return "true", true
		case foldEqual(raw, "n") || foldEqual(raw, "no") || foldEqual(raw, "false"):
			return "false", true
		}
		return "", false
	case KindEnum:
		return matchOption(spec.Options, raw)
	case KindList:
		return parseListResponse(spec.Options, raw)
	default:
		return raw, true
	}
}

func matchOption(options []string, raw string) (string, bool) {
	if i, err := strconv.Atoi(raw); err == nil {
		if i >= 1 && i <= len(options) {
			return options[i-1], true
		}
		return "", false
	}
	for _, opt := range options {
		if foldEqual(opt, raw) {
			return opt, true
		}
	}
	return "", false
}

func parseListResponse(options []string, raw string) (string, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", false
	}
	seen := map[string]bool{}
	var out []string
	for _, f := range fields {
		opt, ok := matchOption(options, f)
		if !ok {
			return "", false
		}
		if seen[opt] {
			continue
		}
		seen[opt] = true
		out = append(out, opt)
	}
	return strings.Join(out, ","), true
}
