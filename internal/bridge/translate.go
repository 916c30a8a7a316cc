package bridge

import "cueso/internal/driver"

// translate converts one driver.Event into its wire representation.
// sessionID is stamped onto the final event since the driver has no notion
// of a wire-level session id; session_created is built separately via
// sessionCreatedEvent.
func translate(ev driver.Event, sessionID string) outgoing {
	switch ev.Type {
	case driver.EventContentDelta:
		return outgoing{Type: "content_delta", Content: ev.Text, Role: "assistant"}

	case driver.EventToolCallDelta:
		tc := &wireToolCall{ID: ev.ToolCallID, Name: ev.ToolCallName}
		if ev.HasInputFragment {
			tc.InputJSON = ev.InputFragment
		}
		return outgoing{Type: "tool_call_delta", ToolCall: tc}

	case driver.EventMessageComplete:
		return outgoing{
			Type:         "message_complete",
			Content:      ev.Content,
			ToolCalls:    ev.ToolCallNames,
			FinishReason: ev.FinishReason,
		}

	case driver.EventToolResult:
		return outgoing{
			Type:       "tool_result",
			ToolName:   ev.ToolName,
			ToolCallID: ev.ToolCallID,
			Result:     ev.Result,
			Error:      ev.Error,
		}

	case driver.EventFinal:
		return outgoing{
			Type:           "final",
			SessionID:      sessionID,
			Content:        ev.Content,
			IterationCount: ev.IterationCount,
			Paused:         ev.Paused,
			ToolCalls:      ev.ToolCallNames,
		}

	default:
		return outgoing{Type: "error", Message: "internal: unrecognized driver event"}
	}
}

func errorEvent(message string) outgoing {
	return outgoing{Type: "error", Message: message}
}

func sessionCreatedEvent(id string) outgoing {
	return outgoing{Type: "session_created", SessionID: id}
}
