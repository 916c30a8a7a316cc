package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cueso/internal/driver"
)

func TestTranslate_ContentDelta(t *testing.T) {
	out := translate(driver.Event{Type: driver.EventContentDelta, Text: "hi"}, "sess-1")
	require.Equal(t, "content_delta", out.Type)
	require.Equal(t, "hi", out.Content)
	require.Equal(t, "assistant", out.Role)
}

func TestTranslate_ToolCallDelta_Start(t *testing.T) {
	out := translate(driver.Event{Type: driver.EventToolCallDelta, ToolCallID: "c1", ToolCallName: "find_content"}, "sess-1")
	require.Equal(t, "tool_call_delta", out.Type)
	require.NotNil(t, out.ToolCall)
	require.Equal(t, "c1", out.ToolCall.ID)
	require.Empty(t, out.ToolCall.InputJSON)
}

func TestTranslate_ToolCallDelta_ArgFragment(t *testing.T) {
	out := translate(driver.Event{
		Type: driver.EventToolCallDelta, ToolCallID: "c1", ToolCallName: "find_content",
		InputFragment: `{"title":`, HasInputFragment: true,
	}, "sess-1")
	require.Equal(t, `{"title":`, out.ToolCall.InputJSON)
}

func TestTranslate_MessageComplete(t *testing.T) {
	out := translate(driver.Event{
		Type: driver.EventMessageComplete, Content: "ok", ToolCallNames: []string{"send_key"}, FinishReason: "tool_use",
	}, "sess-1")
	require.Equal(t, "message_complete", out.Type)
	require.Equal(t, "ok", out.Content)
	require.Equal(t, []string{"send_key"}, out.ToolCalls)
	require.Equal(t, "tool_use", out.FinishReason)
}

func TestTranslate_ToolResult(t *testing.T) {
	out := translate(driver.Event{
		Type: driver.EventToolResult, ToolCallID: "c1", ToolName: "send_key", Result: "ok", Error: true,
	}, "sess-1")
	require.Equal(t, "tool_result", out.Type)
	require.True(t, out.Error)
	require.Equal(t, "ok", out.Result)
}

func TestTranslate_Final(t *testing.T) {
	out := translate(driver.Event{
		Type: driver.EventFinal, Content: "done", IterationCount: 2, Paused: true, ToolCallNames: []string{"find_content"},
	}, "sess-1")
	require.Equal(t, "final", out.Type)
	require.Equal(t, "sess-1", out.SessionID)
	require.Equal(t, 2, out.IterationCount)
	require.True(t, out.Paused)
}

func TestErrorEvent(t *testing.T) {
	out := errorEvent("bad request")
	require.Equal(t, "error", out.Type)
	require.Equal(t, "bad request", out.Message)
}

func TestSessionCreatedEvent(t *testing.T) {
	out := sessionCreatedEvent("sess-1")
	require.Equal(t, "session_created", out.Type)
	require.Equal(t, "sess-1", out.SessionID)
}
