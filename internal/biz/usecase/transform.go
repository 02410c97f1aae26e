package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"
)

// ReplacementConfig is one configured replacement rule
type ReplacementConfig struct {
	Pattern string
	Replace string
}

// TemplateVars holds the values substituted into {{name}} placeholders
type TemplateVars map[string]string

var templatePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Substitute replaces {{name}} placeholders with known values; unknown names
// are left verbatim
func (v TemplateVars) Substitute(s string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-2]
		if val, ok := v[name]; ok {
			return val
		}
		return m
	})
}

type replacementRule struct {
	source      string
	re          *regexp2.Regexp
	replacement string // $1 / ${name} syntax, literal '$' doubled
}

// TransformUsecase rewrites message text with ordered replacement rules
type TransformUsecase struct {
	rules []replacementRule
	log   zerolog.Logger
}

// NewTransformUsecase compiles the replacement rules. Empty patterns are
// ignored, invalid ones are logged and skipped.
func NewTransformUsecase(rules []ReplacementConfig, vars TemplateVars, log zerolog.Logger) *TransformUsecase {
	uc := &TransformUsecase{
		log: log.With().Str("component", "transform").Logger(),
	}

	for _, r := range rules {
		if r.Pattern == "" {
			continue
		}
		re, err := compileRule(r.Pattern)
		if err != nil {
			uc.log.Warn().Err(err).Str("pattern", r.Pattern).Msg("Invalid replacement pattern, skipped")
			continue
		}
		uc.rules = append(uc.rules, replacementRule{
			source:      r.Pattern,
			re:          re,
			replacement: convertReplacement(vars.Substitute(r.Replace)),
		})
	}

	return uc
}

// Transform applies every rule in order; each rule sees the output of the
// previous one
func (uc *TransformUsecase) Transform(text string) string {
	if text == "" {
		return text
	}

	result := text
	for _, rule := range uc.rules {
		next, err := uc.apply(rule, result)
		if err != nil {
			uc.log.Error().Err(err).Str("pattern", rule.source).Msg("Failed to apply replacement")
			continue
		}
		if next != result {
			uc.log.Debug().Str("pattern", rule.source).Msg("Applied replacement")
		}
		result = next
	}
	return result
}

// RuleCount returns the number of compiled rules
func (uc *TransformUsecase) RuleCount() int {
	return len(uc.rules)
}

// RuleSources returns the compiled rule patterns in order
func (uc *TransformUsecase) RuleSources() []string {
	sources := make([]string, 0, len(uc.rules))
	for _, r := range uc.rules {
		sources = append(sources, r.source)
	}
	return sources
}

func (uc *TransformUsecase) apply(rule replacementRule, text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("replacement panicked: %v", r)
		}
	}()
	return rule.re.Replace(text, rule.replacement, -1, -1)
}

// convertReplacement turns a replacement written with \1 and \g<name>
// back-references into $-style substitutions. Literal '$' is escaped.
func convertReplacement(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			b.WriteString("$$")
			continue
		}
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}

		next := s[i+1]
		switch {
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			b.WriteString("${" + s[i+1:j] + "}")
			i = j - 1
		case next == 'g' && i+2 < len(s) && s[i+2] == '<':
			end := strings.IndexByte(s[i+3:], '>')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString("${" + s[i+3:i+3+end] + "}")
			i = i + 3 + end
		case next == 'n':
			b.WriteByte('\n')
			i++
		case next == 't':
			b.WriteByte('\t')
			i++
		case next == '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
