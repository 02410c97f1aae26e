package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
)

// Tool names
const (
	ToolEvaluateFilter   = "mirror_evaluate_filter"
	ToolPreviewTransform = "mirror_preview_transform"
	ToolListRules        = "mirror_list_rules"
)

// EvaluateFilterInput is the input for the evaluate_filter tool
type EvaluateFilterInput struct {
	Text      string `json:"text" jsonschema:"the message text or caption to evaluate"`
	Forwarded bool   `json:"forwarded,omitempty" jsonschema:"whether the message is forwarded from another chat"`
	FileName  string `json:"file_name,omitempty" jsonschema:"optional attached document file name"`
}

// EvaluateFilterOutput is the filter decision for a sample message
type EvaluateFilterOutput struct {
	ShouldCopy  bool   `json:"should_copy"`
	Reason      string `json:"reason,omitempty"`
	FileSkipped bool   `json:"file_skipped"`
	Transformed string `json:"transformed,omitempty"`
}

func (s *Server) handleEvaluateFilter(ctx context.Context, req *mcp.CallToolRequest, input EvaluateFilterInput) (*mcp.CallToolResult, EvaluateFilterOutput, error) {
	msg := &domain.InboundMessage{Text: input.Text, IsForwarded: input.Forwarded}
	decision := s.filterUC.Evaluate(msg, input.Text)

	out := EvaluateFilterOutput{
		ShouldCopy:  decision.ShouldCopy,
		Reason:      decision.Reason,
		FileSkipped: s.filterUC.ShouldSkipFile(input.FileName),
	}
	if decision.ShouldCopy {
		out.Transformed = s.transformUC.Transform(input.Text)
	}
	return nil, out, nil
}

// PreviewTransformInput is the input for the preview_transform tool
type PreviewTransformInput struct {
	Text string `json:"text" jsonschema:"the text to rewrite"`
}

// PreviewTransformOutput holds the rewritten text
type PreviewTransformOutput struct {
	Original    string `json:"original"`
	Transformed string `json:"transformed"`
	Changed     bool   `json:"changed"`
}

func (s *Server) handlePreviewTransform(ctx context.Context, req *mcp.CallToolRequest, input PreviewTransformInput) (*mcp.CallToolResult, PreviewTransformOutput, error) {
	out := s.transformUC.Transform(input.Text)
	return nil, PreviewTransformOutput{
		Original:    input.Text,
		Transformed: out,
		Changed:     out != input.Text,
	}, nil
}

// ListRulesInput is empty - no input needed
type ListRulesInput struct{}

// ListRulesOutput summarizes the loaded rule set
type ListRulesOutput struct {
	Target             string   `json:"target"`
	Sources            []string `json:"sources"`
	Replacements       []string `json:"replacements"`
	NegativeKeywords   []string `json:"negative_keywords"`
	NegativePatterns   []string `json:"negative_patterns"`
	RequireKeywords    []string `json:"require_keywords"`
	IgnoreForwarded    bool     `json:"ignore_forwarded"`
	MinLength          int      `json:"min_length"`
	MaxLength          int      `json:"max_length"`
	SkipFileExtensions []string `json:"skip_file_extensions"`
	ClassifierEnabled  bool     `json:"classifier_enabled"`
}

func (s *Server) handleListRules(ctx context.Context, req *mcp.CallToolRequest, input ListRulesInput) (*mcp.CallToolResult, ListRulesOutput, error) {
	return nil, s.ListRules(), nil
}

// ListRules returns the summary served by the list_rules tool
func (s *Server) ListRules() ListRulesOutput {
	filters := s.config.ToFilterConfig()
	return ListRulesOutput{
		Target:             s.config.Rules.TargetChannel,
		Sources:            nonNil(s.config.Rules.SourceChannels),
		Replacements:       nonNil(s.transformUC.RuleSources()),
		NegativeKeywords:   nonNil(filters.NegativeKeywords),
		NegativePatterns:   nonNil(s.filterUC.PatternSources()),
		RequireKeywords:    nonNil(filters.RequireKeywords),
		IgnoreForwarded:    filters.IgnoreForwarded,
		MinLength:          filters.MinLength,
		MaxLength:          filters.MaxLength,
		SkipFileExtensions: nonNil(filters.SkipFileExtensions),
		ClassifierEnabled:  s.config.ClassifierEnabled(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
