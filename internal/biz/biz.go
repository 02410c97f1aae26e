package biz

import (
	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/biz/usecase"
)

// RuleSet is the configuration the usecases are built from
type RuleSet struct {
	Filter       usecase.FilterConfig
	Replacements []usecase.ReplacementConfig
	Vars         usecase.TemplateVars
	Album        usecase.AlbumConfig
}

// Usecases contains all usecases
type Usecases struct {
	Filter    *usecase.FilterUsecase
	Transform *usecase.TransformUsecase
	Album     *usecase.AlbumUsecase
}

// NewUsecases compiles the rule set. classifier may be nil.
func NewUsecases(rules RuleSet, classifier repo.ClassifierRepo, log zerolog.Logger) *Usecases {
	return &Usecases{
		Filter:    usecase.NewFilterUsecase(rules.Filter, classifier, log),
		Transform: usecase.NewTransformUsecase(rules.Replacements, rules.Vars, log),
		Album:     usecase.NewAlbumUsecase(rules.Album, log),
	}
}
