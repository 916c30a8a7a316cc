// Package registry builds the static tool catalog offered to the LLM and
// routes execute requests to the correct executor variant. It is built once
// at process start from configuration and is read-only thereafter.
package registry

import (
	"context"
	"fmt"

	"cueso/internal/model"
	"cueso/internal/tool"
)

// Entry registers one tool's definition, the executor that implements it,
// and its pause-after policy.
type Entry struct {
	Definition model.ToolDefinition
	Executor   tool.Executor
}

// Registry is the static, read-only tool catalog.
type Registry struct {
	entries map[string]Entry
	order   []string
}

// New builds a Registry from an ordered list of entries. Order is preserved
// in Definitions() so provider requests present tools deterministically.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Definition.Name == "" {
			return nil, fmt.Errorf("registry: tool entry missing name")
		}
		if _, ok := r.entries[e.Definition.Name]; ok {
			return nil, fmt.Errorf("registry: duplicate tool name %q", e.Definition.Name)
		}
		r.entries[e.Definition.Name] = e
		r.order = append(r.order, e.Definition.Name)
	}
	return r, nil
}

// Definitions returns the tool catalog in registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	out := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].Definition)
	}
	return out
}

// PauseAfter reports whether name's catalog entry has pause_after set.
func (r *Registry) PauseAfter(name string) bool {
	e, ok := r.entries[name]
	return ok && e.Definition.PauseAfter
}

// Execute routes call to the executor registered for its name. An unknown
// tool name yields a ToolResult with Error=true rather than a Go error.
func (r *Registry) Execute(ctx context.Context, call model.ToolCall) model.ToolResult {
	e, ok := r.entries[call.Name]
	if !ok {
		return tool.ErrorResult(call, tool.Errorf("registry: unknown tool %q", call.Name))
	}
	return e.Executor.Execute(ctx, call)
}
