package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/amansearch/internal/config"
	"github.com/Aman-CERP/amansearch/internal/search"
	"github.com/Aman-CERP/amansearch/internal/telemetry"
	"github.com/Aman-CERP/amansearch/pkg/version"
)

// ServerName is the implementation name advertised to MCP clients.
const ServerName = "amansearch"

// HandleLister lists the collection handles a caller may search.
type HandleLister interface {
	Handles() []string
}

// Server is the MCP server for amansearch. It exposes the search engine as
// tools over stdio.
type Server struct {
	mcp      *mcp.Server
	searcher search.Searcher
	handles  HandleLister
	config   *config.Config
	logger   *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ServerOption configures the MCP server.
type ServerOption func(*Server)

// WithServerLogger sets the logger for request logging.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHandleLister enables the collections tool.
func WithHandleLister(h HandleLister) ServerOption {
	return func(s *Server) {
		s.handles = h
	}
}

// NewServer creates a new MCP server around searcher.
func NewServer(searcher search.Searcher, cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("%w: searcher is required", search.ErrNilDependency)
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		searcher: searcher,
		config:   cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// SetMetrics sets the query metrics collector and registers the
// query_metrics resource.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	tools := []ToolInfo{{Name: ToolSearch, Description: searchToolDescription}}
	if s.handles != nil {
		tools = append(tools, ToolInfo{Name: ToolCollections, Description: collectionsToolDescription})
	}
	return tools
}

const (
	searchToolDescription = "Full-text search across one or more document collections. " +
		"Supports quoted phrases, site:host/path and -site: operators, tag and facet filters, " +
		"date windows, pagination and sort by date. Returns ranked, highlighted results with " +
		"facet counts and a spelling suggestion when the literal query finds nothing."

	collectionsToolDescription = "List the collection handles that can be passed to the search tool."
)

// CallTool invokes a tool by name with JSON-style arguments and returns the
// markdown rendering. It is the entry point used outside an MCP session.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearch:
		var input SearchInput
		if err := decodeArgs(args, &input); err != nil {
			return nil, err
		}
		resp, req, err := s.search(ctx, input)
		if err != nil {
			return nil, err
		}
		return FormatSearchResults(req.Query, resp, req.Offset), nil
	case ToolCollections:
		if s.handles == nil {
			return nil, NewMethodNotFoundError(name)
		}
		return CollectionsOutput{Handles: s.handles.Handles()}, nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// search runs one tool invocation against the engine.
func (s *Server) search(ctx context.Context, input SearchInput) (*search.Response, search.Request, error) {
	start := time.Now()
	requestID := generateRequestID()

	if len(input.Handles) == 0 {
		return nil, search.Request{}, NewInvalidParamsError("handles parameter is required and must name at least one collection")
	}

	req, err := input.toRequest(s.config.Search.DefaultSize, s.config.Search.MaxSize)
	if err != nil {
		return nil, search.Request{}, err
	}

	s.logger.Info("search_started",
		slog.String("request_id", requestID),
		slog.String("query", req.Query),
		slog.Any("handles", req.Handles),
		slog.Int("size", req.Size),
		slog.Int("offset", req.Offset))

	resp, err := s.searcher.Search(ctx, req)
	duration := time.Since(start)
	if err != nil {
		s.logger.Warn("search_rejected",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, req, MapError(err)
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("total", resp.Total),
		slog.Int("returned", len(resp.Results)))

	return resp, req, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearch,
		Description: searchToolDescription,
	}, s.mcpSearchHandler)
	s.logger.Debug("mcp_tool_registered", slog.String("name", ToolSearch))

	count := 1
	if s.handles != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        ToolCollections,
			Description: collectionsToolDescription,
		}, s.mcpCollectionsHandler)
		s.logger.Debug("mcp_tool_registered", slog.String("name", ToolCollections))
		count++
	}

	s.logger.Info("mcp_tools_registered", slog.Int("count", count))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	resp, req, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: FormatSearchResults(req.Query, resp, req.Offset)},
		},
	}
	return result, toSearchOutput(resp), nil
}

// mcpCollectionsHandler is the MCP SDK handler for the collections tool.
func (s *Server) mcpCollectionsHandler(_ context.Context, _ *mcp.CallToolRequest, _ CollectionsInput) (
	*mcp.CallToolResult,
	CollectionsOutput,
	error,
) {
	return nil, CollectionsOutput{Handles: s.handles.Handles()}, nil
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// decodeArgs maps loosely typed tool arguments onto a typed input.
func decodeArgs(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError("arguments must be a JSON object")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
