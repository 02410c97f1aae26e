package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/channel-mirror/internal/biz/usecase"
	"github.com/DevRickLin/channel-mirror/internal/conf"
)

// Server exposes the mirror rules as MCP tools. Every tool is a dry run over
// the loaded configuration; nothing is sent to any chat service.
type Server struct {
	server      *mcp.Server
	config      *conf.Config
	filterUC    *usecase.FilterUsecase
	transformUC *usecase.TransformUsecase
}

// NewServer creates a new MCP server and registers its tools
func NewServer(config *conf.Config, filterUC *usecase.FilterUsecase, transformUC *usecase.TransformUsecase, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "channel-mirror",
			Version: version,
		}, nil),
		config:      config,
		filterUC:    filterUC,
		transformUC: transformUC,
	}

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolEvaluateFilter,
		Description: "Run the configured filter rules over a sample message and report whether it would be mirrored, why not, and how its text would be rewritten. The advertisement classifier is not called.",
	}, s.handleEvaluateFilter)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolPreviewTransform,
		Description: "Apply the configured replacement rules to a sample text and return the result.",
	}, s.handlePreviewTransform)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolListRules,
		Description: "List the loaded mirror rules: target, sources, replacements and filters.",
	}, s.handleListRules)
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *Server) GetServer() *mcp.Server {
	return s.server
}
