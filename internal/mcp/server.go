package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/campaignsearch/internal/indexer"
	"github.com/dshills/campaignsearch/internal/logger"
	"github.com/dshills/campaignsearch/internal/searcher"
	"github.com/dshills/campaignsearch/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "campaignsearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp         *server.MCPServer
	storage     storage.Storage
	indexer     *indexer.Indexer
	searcher    *searcher.Searcher
	locks       *indexer.CampaignLocks
	indexConfig indexer.Config
	logger      *logger.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used for tool failures
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIndexConfig sets the indexer settings used by index_assets
func WithIndexConfig(cfg *indexer.Config) Option {
	return func(s *Server) {
		if cfg != nil {
			s.indexConfig = *cfg
		}
	}
}

// NewServer creates a new MCP server instance. The caller owns store and
// closes it after Serve returns.
func NewServer(store storage.Storage, idx *indexer.Indexer, srch *searcher.Searcher, opts ...Option) (*Server, error) {
	if store == nil || idx == nil || srch == nil {
		return nil, fmt.Errorf("storage, indexer and searcher are required")
	}

	s := &Server{
		mcp:         server.NewMCPServer(ServerName, ServerVersion),
		storage:     store,
		indexer:     idx,
		searcher:    srch,
		locks:       &indexer.CampaignLocks{},
		indexConfig: indexer.Config{GenerateEmbeddings: true},
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchAssetsTool(), s.handleSearchAssets)
	s.mcp.AddTool(indexAssetsTool(), s.handleIndexAssets)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
