// Package remote implements a client for the remote tool-serving protocol:
// a set of HTTP servers, each exposing a catalog of tools and an invoke
// endpoint. The executor discovers the catalog once at startup and routes
// calls to the server that advertised each tool name.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cueso/internal/model"
	"cueso/internal/tool"
)

// ServerConfig names one remote tool server.
type ServerConfig struct {
	Name    string
	BaseURL string
}

// Executor implements tool.Executor against a catalog of remote tool
// servers discovered at construction time.
type Executor struct {
	httpClient *http.Client
	catalog    map[string]string // tool name -> base URL
	defs       []model.ToolDefinition
}

type catalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

// New discovers each server's catalog via GET {base}/tools and builds a
// read-only tool-name → server routing table. The catalog is cached for the
// lifetime of the Executor; servers added later require a new Executor.
func New(ctx context.Context, servers []ServerConfig, timeout time.Duration) (*Executor, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	e := &Executor{
		httpClient: &http.Client{Timeout: timeout},
		catalog:    make(map[string]string),
	}
	for _, srv := range servers {
		entries, err := e.discover(ctx, srv.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("remote: discover tools from %q: %w", srv.Name, err)
		}
		for _, entry := range entries {
			if prev, ok := e.catalog[entry.Name]; ok && prev != srv.BaseURL {
				return nil, fmt.Errorf("remote: tool %q advertised by both %q and %q", entry.Name, prev, srv.BaseURL)
			}
			e.catalog[entry.Name] = srv.BaseURL
			e.defs = append(e.defs, model.ToolDefinition{
				Name:        entry.Name,
				Description: entry.Description,
				InputSchema: entry.InputSchema,
			})
		}
	}
	return e, nil
}

func (e *Executor) discover(ctx context.Context, baseURL string) ([]catalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/tools", nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	var entries []catalogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return entries, nil
}

// Tools returns the tool catalog discovered at construction time.
func (e *Executor) Tools() []model.ToolDefinition {
	return append([]model.ToolDefinition(nil), e.defs...)
}

type invokeResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// Execute implements tool.Executor. Transport errors, timeouts, and
// server-reported errors all convert to a ToolResult with Error=true rather
// than propagating, per spec.md §4.2.
func (e *Executor) Execute(ctx context.Context, call model.ToolCall) model.ToolResult {
	baseURL, ok := e.catalog[call.Name]
	if !ok {
		return tool.ErrorResult(call, tool.Errorf("remote executor: unknown tool %q", call.Name))
	}
	u := fmt.Sprintf("%s/tools/%s/invoke", baseURL, call.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(call.Arguments))
	if err != nil {
		return tool.ErrorResult(call, tool.Wrap("remote executor: build request", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return tool.ErrorResult(call, tool.Wrap("remote executor: request failed", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tool.ErrorResult(call, tool.Wrap("remote executor: read response", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tool.ErrorResult(call, tool.Errorf("remote executor: server %q returned %d: %s", baseURL, resp.StatusCode, string(body)))
	}
	var out invokeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return tool.ErrorResult(call, tool.Wrap("remote executor: decode response", err))
	}
	if out.Error != "" {
		return tool.ErrorResult(call, tool.Errorf("%s", out.Error))
	}
	return tool.SuccessResult(call, out.Result)
}
