package usecase

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// ruleOptions is the match mode for every configured rule: case-insensitive
// and '.' matching newlines. \w, \s and \d are Unicode-aware.
const ruleOptions = regexp2.IgnoreCase | regexp2.Singleline

// matchTimeout bounds a single match so a backtracking-heavy rule cannot
// stall the pipeline
const matchTimeout = 2 * time.Second

// compileRule compiles a configured rule pattern
func compileRule(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(normalizePattern(pattern), ruleOptions)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

// normalizePattern rewrites the group syntax rule files commonly use into the
// engine's dialect: (?P<name>...) becomes (?<name>...), (?P=name) becomes
// \k<name> and \Z becomes \z (end of input only).
func normalizePattern(p string) string {
	if !strings.Contains(p, "(?P") && !strings.Contains(p, `\Z`) {
		return p
	}

	var b strings.Builder
	b.Grow(len(p))

	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			if p[i+1] == 'Z' {
				b.WriteString(`\z`)
			} else {
				b.WriteByte(c)
				b.WriteByte(p[i+1])
			}
			i++
		case strings.HasPrefix(p[i:], "(?P<"):
			b.WriteString("(?<")
			i += len("(?P<") - 1
		case strings.HasPrefix(p[i:], "(?P="):
			end := strings.IndexByte(p[i:], ')')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString(`\k<` + p[i+len("(?P="):i+end] + ">")
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
