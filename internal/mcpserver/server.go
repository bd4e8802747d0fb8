// Package mcpserver exposes a picker engine as MCP tools so an agent can
// drive pick mode on a live page.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/picker"
)

// recentErrors bounds the error history kept for picker_state.
const recentErrors = 10

// Server adapts an Engine to MCP tool calls.
type Server struct {
	engine *picker.Engine
	doc    dom.Document
	logger *slog.Logger

	// calls serializes tool calls so engine errors can be attributed to
	// the call that caused them.
	calls sync.Mutex

	mu   sync.Mutex
	seq  int
	errs []*picker.Error
}

// New creates a Server. Wire Hooks into the engine so the server sees its
// errors.
func New(eng *picker.Engine, doc dom.Document, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, doc: doc, logger: logger}
}

// Hooks wraps next so that engine errors are also recorded by s.
func (s *Server) Hooks(next picker.Hooks) picker.Hooks {
	h := next
	h.OnError = func(err *picker.Error) {
		s.mu.Lock()
		s.seq++
		s.errs = append(s.errs, err)
		if len(s.errs) > recentErrors {
			s.errs = s.errs[len(s.errs)-recentErrors:]
		}
		s.mu.Unlock()
		if next.OnError != nil {
			next.OnError(err)
		}
	}
	return h
}

// NewMCP creates an MCP server with every picker tool registered.
func (s *Server) NewMCP(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "pickmode", Version: version}, nil)
	s.Register(srv)
	return srv
}

// Serve runs the tools over stdio until ctx is done or the client leaves.
func (s *Server) Serve(ctx context.Context, version string) error {
	s.logger.Info("mcp: serving on stdio")
	return s.NewMCP(version).Run(ctx, &mcp.StdioTransport{})
}

// endpoint handles one decoded tool request.
type endpoint func(ctx context.Context, req any) (any, error)

// addTool registers an endpoint, turning decode, endpoint and marshal
// failures into tool errors rather than protocol errors.
func (s *Server) addTool(srv *mcp.Server, tool *mcp.Tool, ep endpoint, decode func(json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}
		decoded, err := decode(args)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		s.calls.Lock()
		resp, err := ep(ctx, decoded)
		s.calls.Unlock()
		if err != nil {
			s.logger.Debug("mcp: tool failed", "tool", tool.Name, "error", err)
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// guard runs fn and returns the first engine error reported while it ran.
func (s *Server) guard(fn func()) error {
	s.mu.Lock()
	start := s.seq
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.seq - start; n > 0 {
		i := len(s.errs) - n
		if i < 0 {
			i = 0
		}
		return s.errs[i]
	}
	return nil
}

// recent returns the recorded engine errors, oldest first.
func (s *Server) recent() []errorView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]errorView, 0, len(s.errs))
	for _, e := range s.errs {
		out = append(out, errorView{Code: string(e.Code), Message: picker.Humanize(e)})
	}
	return out
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// noArgs decodes tools that take no arguments.
func noArgs(json.RawMessage) (any, error) { return nil, nil }

func decodeInto[T any](raw json.RawMessage) (any, error) {
	var r T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
