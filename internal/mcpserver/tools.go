package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/persist"
	"github.com/v0xg/pickmode/internal/picker"
	"github.com/v0xg/pickmode/internal/selector"
)

// Register adds the picker tools to srv.
func (s *Server) Register(srv *mcp.Server) {
	s.registerToggleTools(srv)
	s.registerSelectTool(srv)
	s.registerClearTool(srv)
	s.registerModeTool(srv)
	s.registerSelectionTool(srv)
	s.registerInfoTool(srv)
	s.registerSaveTool(srv)
	s.registerStateTool(srv)
}

type selectionView struct {
	Enabled  bool             `json:"enabled"`
	Mode     string           `json:"mode"`
	Active   string           `json:"active,omitempty"`
	Selected []persist.Record `json:"selected"`
}

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) selection() selectionView {
	st := s.engine.State()
	recs := s.engine.Records()
	if recs == nil {
		recs = []persist.Record{}
	}
	return selectionView{
		Enabled:  st.Enabled,
		Mode:     string(st.Mode),
		Active:   selector.Synthesize(st.Active),
		Selected: recs,
	}
}

// resolve finds the element a tool argument names.
func (s *Server) resolve(sel string) (dom.Element, error) {
	if sel == "" {
		return nil, fmt.Errorf("selector is required")
	}
	el, err := selector.Resolve(s.doc, sel)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, fmt.Errorf("no element matches %q", sel)
	}
	return el, nil
}

// --- enable / disable / toggle ---

func (s *Server) registerToggleTools(srv *mcp.Server) {
	tools := []struct {
		name, desc string
		fn         func()
	}{
		{"picker_enable", "Turn pick mode on: hovering highlights elements and clicks select them.", s.engine.Enable},
		{"picker_disable", "Turn pick mode off. The selection is kept.", s.engine.Disable},
		{"picker_toggle", "Flip pick mode on or off.", s.engine.Toggle},
	}
	for _, t := range tools {
		fn := t.fn
		ep := func(context.Context, any) (any, error) {
			if err := s.guard(fn); err != nil {
				return nil, err
			}
			return map[string]any{"enabled": s.engine.Enabled()}, nil
		}
		s.addTool(srv, &mcp.Tool{
			Name:        t.name,
			Description: t.desc,
			InputSchema: inputSchema(map[string]any{}, nil),
		}, ep, noArgs)
	}
}

// --- select ---

type selectReq struct {
	Selector string `json:"selector"`
}

func (s *Server) registerSelectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "picker_select",
		Description: "Toggle the first element matching a CSS selector in the selection, as if it were clicked.",
		InputSchema: inputSchema(map[string]any{
			"selector": map[string]any{"type": "string", "description": "CSS selector of the element"},
		}, []string{"selector"}),
	}

	ep := func(_ context.Context, req any) (any, error) {
		r := req.(*selectReq)
		el, err := s.resolve(r.Selector)
		if err != nil {
			return nil, err
		}
		if err := s.guard(func() { s.engine.Select(el) }); err != nil {
			return nil, err
		}
		return s.selection(), nil
	}

	s.addTool(srv, tool, ep, decodeInto[selectReq])
}

// --- clear ---

func (s *Server) registerClearTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "picker_clear",
		Description: "Empty the selection.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	ep := func(context.Context, any) (any, error) {
		if err := s.guard(s.engine.ClearSelection); err != nil {
			return nil, err
		}
		return s.selection(), nil
	}

	s.addTool(srv, tool, ep, noArgs)
}

// --- set mode ---

type modeReq struct {
	Mode string `json:"mode"`
}

func (s *Server) registerModeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "picker_set_mode",
		Description: "Switch between single and multiple selection. Switching to single keeps only the first selected element.",
		InputSchema: inputSchema(map[string]any{
			"mode": map[string]any{"type": "string", "enum": []string{"single", "multiple"}},
		}, []string{"mode"}),
	}

	ep := func(_ context.Context, req any) (any, error) {
		m, err := picker.ParseMode(req.(*modeReq).Mode)
		if err != nil {
			return nil, err
		}
		if err := s.guard(func() { s.engine.SetSelectionMode(m) }); err != nil {
			return nil, err
		}
		return s.selection(), nil
	}

	s.addTool(srv, tool, ep, decodeInto[modeReq])
}

// --- selection ---

func (s *Server) registerSelectionTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "picker_selection",
		Description: "Return the selected elements, oldest first, with the mode and the hovered element.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	ep := func(context.Context, any) (any, error) {
		return s.selection(), nil
	}

	s.addTool(srv, tool, ep, noArgs)
}

// --- element info ---

type infoReq struct {
	Selector string `json:"selector"`
}

func (s *Server) registerInfoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "picker_element_info",
		Description: "Snapshot an element's computed and inline styles, box model, position and visibility.",
		InputSchema: inputSchema(map[string]any{
			"selector": map[string]any{"type": "string", "description": "CSS selector of the element"},
		}, []string{"selector"}),
	}

	ep := func(_ context.Context, req any) (any, error) {
		el, err := s.resolve(req.(*infoReq).Selector)
		if err != nil {
			return nil, err
		}
		return s.engine.ElementInfo(el)
	}

	s.addTool(srv, tool, ep, decodeInto[infoReq])
}

// --- save ---

func (s *Server) registerSaveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "picker_save",
		Description: "Persist the current selection so it can be restored after a reload.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	ep := func(context.Context, any) (any, error) {
		var ok bool
		if err := s.guard(func() { ok = s.engine.Save() }); err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("save failed")
		}
		return map[string]any{"saved": len(s.engine.Records())}, nil
	}

	s.addTool(srv, tool, ep, noArgs)
}

// --- state ---

type stateView struct {
	persist.Info
	Engine string      `json:"engine"`
	Errors []errorView `json:"recentErrors"`
}

func (s *Server) registerStateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "picker_state",
		Description: "Describe the persisted selection state and the most recent engine errors.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	ep := func(context.Context, any) (any, error) {
		return stateView{Info: s.engine.Store().Info(), Engine: s.engine.ID(), Errors: s.recent()}, nil
	}

	s.addTool(srv, tool, ep, noArgs)
}
