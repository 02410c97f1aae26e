package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
)

// FilterConfig contains the filter rule set
type FilterConfig struct {
	IgnoreForwarded    bool
	RequireKeywords    []string // case-sensitive, any one must occur
	NegativeKeywords   []string // case-insensitive
	NegativePatterns   []string // case-insensitive, '.' matches newlines
	MinLength          int      // 0 disables
	MaxLength          int      // 0 disables
	SkipFileExtensions []string
}

type compiledPattern struct {
	source string
	re     *regexp2.Regexp
}

// FilterUsecase decides whether a message is mirrored
type FilterUsecase struct {
	config     FilterConfig
	patterns   []compiledPattern
	classifier repo.ClassifierRepo
	log        zerolog.Logger
}

// NewFilterUsecase compiles the rule set. Patterns that fail to compile are
// logged and left out; the remaining rules still apply.
func NewFilterUsecase(config FilterConfig, classifier repo.ClassifierRepo, log zerolog.Logger) *FilterUsecase {
	uc := &FilterUsecase{
		config:     config,
		classifier: classifier,
		log:        log.With().Str("component", "filter").Logger(),
	}

	for _, p := range config.NegativePatterns {
		re, err := compileRule(p)
		if err != nil {
			uc.log.Warn().Err(err).Str("pattern", p).Msg("Invalid negative pattern, skipped")
			continue
		}
		uc.patterns = append(uc.patterns, compiledPattern{source: p, re: re})
	}

	return uc
}

// Evaluate runs the rule checks in fixed order; the first failure wins
func (uc *FilterUsecase) Evaluate(msg *domain.InboundMessage, text string) domain.FilterDecision {
	if uc.config.IgnoreForwarded && msg.IsForwarded {
		return domain.Drop("message is forwarded")
	}

	if !uc.matchesRequiredKeyword(text) {
		return domain.Drop("missing required keyword")
	}

	if kw := uc.matchNegativeKeyword(text); kw != "" {
		return domain.Drop(fmt.Sprintf("matched negative keyword: '%s'", kw))
	}

	if p := uc.matchNegativePattern(text); p != "" {
		return domain.Drop(fmt.Sprintf("matched negative pattern: '%s'", p))
	}

	if n := utf8.RuneCountInString(text); !uc.lengthWithinLimits(n) {
		return domain.Drop(fmt.Sprintf("message length (%d) outside limits", n))
	}

	return domain.Keep()
}

// Check runs Evaluate and then, for passing messages, the classifier if one
// is configured. Classifier failures keep the message.
func (uc *FilterUsecase) Check(ctx context.Context, msg *domain.InboundMessage, text string) domain.FilterDecision {
	decision := uc.Evaluate(msg, text)
	if !decision.ShouldCopy || uc.classifier == nil || text == "" {
		return decision
	}

	isAd, err := uc.classifier.IsAdvertisement(ctx, text)
	if err != nil {
		uc.log.Warn().Err(err).Int("msg_id", msg.ID).Msg("Classifier failed, keeping message")
		return decision
	}
	if isAd {
		return domain.Drop("classified as advertisement")
	}
	return decision
}

// IsClassifierEnabled returns whether the classifier stage is configured
func (uc *FilterUsecase) IsClassifierEnabled() bool {
	return uc.classifier != nil
}

// ShouldSkipFile reports whether a file name ends with one of the skipped
// extensions, ignoring case
func (uc *FilterUsecase) ShouldSkipFile(fileName string) bool {
	if fileName == "" || len(uc.config.SkipFileExtensions) == 0 {
		return false
	}

	lower := strings.ToLower(fileName)
	for _, ext := range uc.config.SkipFileExtensions {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// PatternSources returns the negative patterns that compiled
func (uc *FilterUsecase) PatternSources() []string {
	sources := make([]string, 0, len(uc.patterns))
	for _, p := range uc.patterns {
		sources = append(sources, p.source)
	}
	return sources
}

func (uc *FilterUsecase) matchesRequiredKeyword(text string) bool {
	if len(uc.config.RequireKeywords) == 0 {
		return true
	}
	for _, kw := range uc.config.RequireKeywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (uc *FilterUsecase) matchNegativeKeyword(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for _, kw := range uc.config.NegativeKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}

func (uc *FilterUsecase) matchNegativePattern(text string) string {
	if text == "" {
		return ""
	}
	for _, p := range uc.patterns {
		matched, err := p.re.MatchString(text)
		if err != nil {
			uc.log.Warn().Err(err).Str("pattern", p.source).Msg("Negative pattern match failed, ignoring it")
			continue
		}
		if matched {
			return p.source
		}
	}
	return ""
}

func (uc *FilterUsecase) lengthWithinLimits(n int) bool {
	if uc.config.MinLength > 0 && n < uc.config.MinLength {
		return false
	}
	if uc.config.MaxLength > 0 && n > uc.config.MaxLength {
		return false
	}
	return true
}
