// Package bridge binds a client-facing WebSocket connection to a driver
// run: it decodes client turns, resolves sessions, drives the tool-calling
// loop under the session lock, and translates driver.Events into the wire
// event schema clients speak (spec.md §6).
package bridge

// wireToolCall is the nested object carried by tool_call_delta.
type wireToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	InputJSON string `json:"input_json,omitempty"`
}

// outgoing is the server→client wire event envelope. Only the fields
// relevant to Type are populated; the rest marshal as their zero value and
// are omitted where tagged omitempty.
type outgoing struct {
	Type string `json:"type"`

	// session_created, final
	SessionID string `json:"session_id,omitempty"`

	// content_delta
	Content string `json:"content,omitempty"`
	Role    string `json:"role,omitempty"`

	// tool_call_delta
	ToolCall *wireToolCall `json:"tool_call,omitempty"`

	// message_complete
	ToolCalls    []string `json:"tool_calls,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`

	// tool_result
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Result     string `json:"result,omitempty"`
	Error      bool   `json:"error,omitempty"`

	// final
	IterationCount int  `json:"iteration_count,omitempty"`
	Paused         bool `json:"paused,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// incoming is the client→server turn. Unknown fields are ignored by
// encoding/json's default decode behavior.
type incoming struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
}
