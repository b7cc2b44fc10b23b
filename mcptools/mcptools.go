// Package mcptools exposes the coordinator to MCP clients: group toggles,
// lead review, profiles and autorun control. Every tool goes through the
// message protocol, so the session gate applies.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/leadscout/classify"
	"github.com/hazyhaar/leadscout/lead"
	"github.com/hazyhaar/leadscout/message"
)

// Register adds the leadscout tools to srv, answering through h.
func Register(srv *mcp.Server, h message.Handler) {
	t := &tools{h: h}
	t.listGroups(srv)
	t.enableGroup(srv)
	t.disableGroup(srv)
	t.listLeads(srv)
	t.setLeadStatus(srv)
	t.listProfiles(srv)
	t.upsertProfile(srv)
	t.setActiveProfile(srv)
	t.autorun(srv)
}

type tools struct {
	h message.Handler
}

func (t *tools) do(ctx context.Context, req message.Request) (message.Response, error) {
	resp := message.Dispatch(ctx, t.h, req)
	return resp, resp.Err()
}

// inputSchema builds a JSON Schema object with type "object".
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

func str(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }

// addTool registers a tool whose arguments decode into T and whose result
// is returned as JSON text.
func addTool[T any](srv *mcp.Server, tool *mcp.Tool, fn func(ctx context.Context, args T) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args T
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}
		out, err := fn(ctx, args)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil
	})
}

// --- groups ---

func (t *tools) listGroups(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_list_groups",
		Description: "List monitored groups with their enabled flag.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ struct{}) (any, error) {
		resp, err := t.do(ctx, message.ListGroups{})
		return nonNilGroups(resp.Groups), err
	})
}

type slugArgs struct {
	Slug string `json:"slug"`
	URL  string `json:"url,omitempty"`
}

func (t *tools) enableGroup(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_enable_group",
		Description: "Enable monitoring of a group. Fails when the active group limit is reached.",
		InputSchema: inputSchema(map[string]any{
			"slug": str("Group slug as in /groups/<slug>/"),
			"url":  str("Group URL (default: built from the slug)"),
		}, []string{"slug"}),
	}, func(ctx context.Context, a slugArgs) (any, error) {
		resp, err := t.do(ctx, message.GroupEnable{Slug: a.Slug, URL: a.URL})
		return resp.Group, err
	})
}

func (t *tools) disableGroup(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_disable_group",
		Description: "Disable monitoring of a group.",
		InputSchema: inputSchema(map[string]any{"slug": str("Group slug")}, []string{"slug"}),
	}, func(ctx context.Context, a slugArgs) (any, error) {
		resp, err := t.do(ctx, message.GroupDisable{Slug: a.Slug})
		return resp.Group, err
	})
}

// --- leads ---

type listLeadsArgs struct {
	Status string `json:"status,omitempty"`
	Group  string `json:"group,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (t *tools) listLeads(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_list_leads",
		Description: "List captured leads, most recently updated first.",
		InputSchema: inputSchema(map[string]any{
			"status": map[string]any{"type": "string", "enum": []any{"new", "contacted", "followup", "closed", "ignored"}, "description": "Filter by CRM status"},
			"group":  str("Filter by group slug"),
			"limit":  map[string]any{"type": "integer", "description": "Max results (default 50)"},
		}, nil),
	}, func(ctx context.Context, a listLeadsArgs) (any, error) {
		resp, err := t.do(ctx, message.LeadsList{})
		if err != nil {
			return nil, err
		}
		if a.Limit <= 0 {
			a.Limit = 50
		}
		out := make([]lead.Lead, 0, min(a.Limit, len(resp.Leads)))
		for _, l := range resp.Leads {
			if a.Status != "" && string(l.Status) != a.Status {
				continue
			}
			if a.Group != "" && l.GroupSlug != a.Group {
				continue
			}
			out = append(out, l)
			if len(out) == a.Limit {
				break
			}
		}
		return out, nil
	})
}

type leadStatusArgs struct {
	Key    string  `json:"key"`
	Status string  `json:"status,omitempty"`
	Note   *string `json:"note,omitempty"`
}

func (t *tools) setLeadStatus(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_update_lead",
		Description: "Set the CRM status and/or note of a lead.",
		InputSchema: inputSchema(map[string]any{
			"key":    str("Lead dedupe key"),
			"status": map[string]any{"type": "string", "enum": []any{"new", "contacted", "followup", "closed", "ignored"}},
			"note":   str("Free-form note"),
		}, []string{"key"}),
	}, func(ctx context.Context, a leadStatusArgs) (any, error) {
		req := message.LeadsPatch{Key: a.Key, Note: a.Note}
		if a.Status != "" {
			s := lead.Status(a.Status)
			req.Status = &s
		}
		resp, err := t.do(ctx, req)
		return resp.Lead, err
	})
}

// --- profiles ---

func (t *tools) listProfiles(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_list_profiles",
		Description: "List keyword profiles and the active profile id.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ struct{}) (any, error) {
		resp, err := t.do(ctx, message.ProfilesList{})
		if err != nil {
			return nil, err
		}
		st, err := t.do(ctx, message.SettingsGet{})
		if err != nil {
			return nil, err
		}
		return map[string]any{"active": st.Settings.ActiveProfileID, "profiles": resp.Profiles}, nil
	})
}

type upsertProfileArgs struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Include string `json:"include"`
	Exclude string `json:"exclude,omitempty"`
}

func (t *tools) upsertProfile(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_upsert_profile",
		Description: "Create or replace a keyword profile. Keywords are comma separated.",
		InputSchema: inputSchema(map[string]any{
			"id":      str("Profile id"),
			"name":    str("Display name (default: id)"),
			"include": str("Comma separated keywords, at least one must appear"),
			"exclude": str("Comma separated keywords, none may appear"),
		}, []string{"id", "include"}),
	}, func(ctx context.Context, a upsertProfileArgs) (any, error) {
		p := lead.Profile{
			ID:      strings.TrimSpace(a.ID),
			Name:    a.Name,
			Include: classify.NormalizeKeywords(a.Include),
			Exclude: classify.NormalizeKeywords(a.Exclude),
		}
		resp, err := t.do(ctx, message.ProfilesUpsert{Profile: p})
		return resp.Profile, err
	})
}

type profileIDArgs struct {
	ID string `json:"id"`
}

func (t *tools) setActiveProfile(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_set_active_profile",
		Description: "Select the profile used to classify posts.",
		InputSchema: inputSchema(map[string]any{"id": str("Profile id")}, []string{"id"}),
	}, func(ctx context.Context, a profileIDArgs) (any, error) {
		resp, err := t.do(ctx, message.SettingsSetActiveProfile{ProfileID: a.ID})
		return resp.Settings, err
	})
}

// --- autorun ---

type autorunArgs struct {
	Action     string `json:"action"`
	IntervalMs int64  `json:"interval_ms,omitempty"`
}

func (t *tools) autorun(srv *mcp.Server) {
	addTool(srv, &mcp.Tool{
		Name:        "leadscout_autorun",
		Description: "Start, stop, reset or inspect the autorun loop that cycles through enabled groups.",
		InputSchema: inputSchema(map[string]any{
			"action":      map[string]any{"type": "string", "enum": []any{"status", "start", "stop", "reset"}},
			"interval_ms": map[string]any{"type": "integer", "description": "Interval between group visits for start (min 60000, default 300000)"},
		}, []string{"action"}),
	}, func(ctx context.Context, a autorunArgs) (any, error) {
		var req message.Request
		switch a.Action {
		case "status", "":
			req = message.AutorunStatus{}
		case "start":
			req = message.AutorunStart{IntervalMs: a.IntervalMs}
		case "stop":
			req = message.AutorunStop{}
		case "reset":
			req = message.AutorunReset{}
		default:
			return nil, fmt.Errorf("unknown action %q", a.Action)
		}
		resp, err := t.do(ctx, req)
		return resp.State, err
	})
}

func nonNilGroups(gs []lead.Group) []lead.Group {
	if gs == nil {
		return []lead.Group{}
	}
	return gs
}
