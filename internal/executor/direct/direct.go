// Package direct implements the direct tool executor: a closed set of tool
// names mapped to concrete handlers (find_content, launch_content,
// get_device_info, get_active_app, send_key) that call out to the Roku ECP
// client and an external content-search collaborator.
package direct

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"cueso/internal/model"
	"cueso/internal/roku"
	"cueso/internal/tool"
)

// defaultTimeout bounds a single tool execution. Exceeding it yields an
// error=true result rather than blocking the driver indefinitely (spec.md §5).
const defaultTimeout = 10 * time.Second

// Tool names handled by this executor.
const (
	ToolFindContent   = "find_content"
	ToolLaunchContent = "launch_content"
	ToolGetDeviceInfo = "get_device_info"
	ToolGetActiveApp  = "get_active_app"
	ToolSendKey       = "send_key"
)

// ContentSearcher is the external web-search/metadata collaborator used by
// find_content. It is out of this system's scope per spec.md §1; the
// executor depends only on this interface.
type ContentSearcher interface {
	Search(ctx context.Context, query ContentQuery) ([]ContentMatch, error)
}

// ContentQuery is the find_content tool's decoded argument payload.
type ContentQuery struct {
	Title     string `json:"title"`
	MediaType string `json:"media_type,omitempty"`
	Season    int    `json:"season,omitempty"`
	Episode   int    `json:"episode,omitempty"`
}

// ContentMatch is one candidate returned by a ContentSearcher.
type ContentMatch struct {
	ChannelID int    `json:"channel_id"`
	ContentID string `json:"content_id"`
	MediaType string `json:"media_type"`
	Title     string `json:"title"`
}

// Executor implements tool.Executor for the direct tool set.
type Executor struct {
	roku    *roku.Client
	search  ContentSearcher
	schemas map[string]*jsonschema.Schema
	timeout time.Duration
}

// New builds a direct executor, compiling each definition's JSON Schema
// (object-typed); Execute validates arguments against it before dispatch.
func New(rokuClient *roku.Client, search ContentSearcher, defs []model.ToolDefinition) (*Executor, error) {
	schemas := make(map[string]*jsonschema.Schema, len(defs))
	for _, def := range defs {
		if def.InputSchema == nil {
			continue
		}
		schema, err := compileSchema(def.Name, def.InputSchema)
		if err != nil {
			return nil, err
		}
		schemas[def.Name] = schema
	}
	return &Executor{roku: rokuClient, search: search, schemas: schemas, timeout: defaultTimeout}, nil
}

func compileSchema(name string, schema any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("direct: marshal schema for %q: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("direct: unmarshal schema for %q: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	resourceID := name + ".json"
	if err := c.AddResource(resourceID, doc); err != nil {
		return nil, fmt.Errorf("direct: add schema resource for %q: %w", name, err)
	}
	compiled, err := c.Compile(resourceID)
	if err != nil {
		return nil, fmt.Errorf("direct: compile schema for %q: %w", name, err)
	}
	return compiled, nil
}

// Execute implements tool.Executor.
func (e *Executor) Execute(ctx context.Context, call model.ToolCall) model.ToolResult {
	if err := e.validate(call); err != nil {
		return tool.ErrorResult(call, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch call.Name {
	case ToolFindContent:
		return e.findContent(ctx, call)
	case ToolLaunchContent:
		return e.launchContent(ctx, call)
	case ToolGetDeviceInfo:
		return e.getDeviceInfo(ctx, call)
	case ToolGetActiveApp:
		return e.getActiveApp(ctx, call)
	case ToolSendKey:
		return e.sendKey(ctx, call)
	default:
		return tool.ErrorResult(call, tool.Errorf("direct executor: unknown tool %q", call.Name))
	}
}

func (e *Executor) validate(call model.ToolCall) error {
	schema, ok := e.schemas[call.Name]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(call.Arguments, &doc); err != nil {
		return tool.Wrap("arguments are not valid JSON", err)
	}
	if err := schema.Validate(doc); err != nil {
		return tool.Wrap("arguments failed schema validation", err)
	}
	return nil
}

func (e *Executor) findContent(ctx context.Context, call model.ToolCall) model.ToolResult {
	var q ContentQuery
	if err := json.Unmarshal(call.Arguments, &q); err != nil {
		return tool.ErrorResult(call, tool.Wrap("decode find_content arguments", err))
	}
	matches, err := e.search.Search(ctx, q)
	if err != nil {
		return tool.ErrorResult(call, tool.Wrap("content search failed", err))
	}
	body, err := json.Marshal(struct {
		Success bool           `json:"success"`
		Matches []ContentMatch `json:"matches"`
	}{Success: true, Matches: matches})
	if err != nil {
		return tool.ErrorResult(call, tool.Wrap("encode find_content result", err))
	}
	return tool.SuccessResult(call, string(body))
}

func (e *Executor) launchContent(ctx context.Context, call model.ToolCall) model.ToolResult {
	var args struct {
		ChannelID int    `json:"channel_id"`
		ContentID string `json:"content_id"`
		MediaType string `json:"media_type"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return tool.ErrorResult(call, tool.Wrap("decode launch_content arguments", err))
	}
	if args.ChannelID == 0 {
		return tool.ErrorResult(call, tool.Errorf("missing channel_id"))
	}
	if err := e.roku.LaunchContent(ctx, args.ChannelID, args.ContentID, args.MediaType); err != nil {
		return tool.ErrorResult(call, err)
	}
	return tool.SuccessResult(call, `{"success":true}`)
}

func (e *Executor) getDeviceInfo(ctx context.Context, call model.ToolCall) model.ToolResult {
	info, err := e.roku.DeviceInfo(ctx)
	if err != nil {
		return tool.ErrorResult(call, err)
	}
	body, err := json.Marshal(info)
	if err != nil {
		return tool.ErrorResult(call, tool.Wrap("encode device info", err))
	}
	return tool.SuccessResult(call, string(body))
}

func (e *Executor) getActiveApp(ctx context.Context, call model.ToolCall) model.ToolResult {
	app, err := e.roku.ActiveApp(ctx)
	if err != nil {
		return tool.ErrorResult(call, err)
	}
	body, err := json.Marshal(app)
	if err != nil {
		return tool.ErrorResult(call, tool.Wrap("encode active app", err))
	}
	return tool.SuccessResult(call, string(body))
}

func (e *Executor) sendKey(ctx context.Context, call model.ToolCall) model.ToolResult {
	var args struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return tool.ErrorResult(call, tool.Wrap("decode send_key arguments", err))
	}
	if args.Key == "" {
		return tool.ErrorResult(call, tool.Errorf("missing key"))
	}
	if err := e.roku.SendKey(ctx, args.Key); err != nil {
		return tool.ErrorResult(call, err)
	}
	return tool.SuccessResult(call, `{"success":true}`)
}
