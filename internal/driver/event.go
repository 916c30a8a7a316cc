// Package driver implements the LLM session driver: the tool-calling loop
// that prompts a provider, streams and accumulates its output, dispatches
// tool calls, re-prompts, and enforces the iteration bound and pause
// policy. This is the core of the system (spec.md §4.4).
package driver

// EventType discriminates Event variants emitted by Run. The bridge
// translates each Event into the wire event defined in spec.md §6.
type EventType string

const (
	EventContentDelta    EventType = "content_delta"
	EventToolCallDelta   EventType = "tool_call_delta"
	EventMessageComplete EventType = "message_complete"
	EventToolResult      EventType = "tool_result"
	EventFinal           EventType = "final"
)

// Event is one item of a driver run's output sequence. A Run that is not
// cancelled emits exactly one Final event, always last; a cancelled Run
// emits none.
type Event struct {
	Type EventType

	// ContentDelta
	Text string

	// ToolCallDelta: emitted once per tool-call start (HasInputFragment
	// false) and once per argument fragment (HasInputFragment true).
	ToolCallID       string
	ToolCallName     string
	InputFragment    string
	HasInputFragment bool

	// MessageComplete / Final
	Content       string
	ToolCallNames []string
	FinishReason  string

	// ToolResult
	ToolName string
	Result   string
	Error    bool

	// Final
	IterationCount int
	Paused         bool
}
