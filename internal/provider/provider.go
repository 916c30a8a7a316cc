// Package provider defines the normalized streaming contract that vendor
// adapters (internal/provider/anthropic, internal/provider/openai) translate
// their native protocols into. The driver consumes only this contract and
// never branches on provider identity.
package provider

import (
	"context"
	"errors"

	"cueso/internal/model"
)

// FinishReason classifies why a provider stream ended.
type FinishReason string

const (
	FinishEndTurn       FinishReason = "end_turn"
	FinishToolUse       FinishReason = "tool_use"
	FinishLength        FinishReason = "length"
	FinishStopSequence  FinishReason = "stop_sequence"
	FinishError         FinishReason = "error"
)

// EventType discriminates ProviderEvent variants.
type EventType string

const (
	EventContentDelta    EventType = "content_delta"
	EventToolCallStart   EventType = "tool_call_start"
	EventToolCallArgDelta EventType = "tool_call_arg_delta"
	EventToolCallEnd     EventType = "tool_call_end"
	EventMessageEnd      EventType = "message_end"
)

// Event is a single normalized streaming event. Exactly one field group is
// populated according to Type. A stream emits exactly one EventMessageEnd,
// always last.
type Event struct {
	Type EventType

	// ContentDelta
	Text string

	// ToolCallStart / ToolCallArgDelta / ToolCallEnd
	Index        int
	ToolCallID   string
	ToolCallName string
	JSONFragment string

	// MessageEnd
	FinishReason FinishReason
}

// Request carries the inputs to a single provider call.
type Request struct {
	Messages     []model.Message
	Tools        []model.ToolDefinition
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
}

// Stream delivers Events in arrival order. Callers must drain it to a
// terminal EventMessageEnd (or until Next returns an error) and must call
// Close exactly once.
type Stream interface {
	// Next returns the next event, or io.EOF after the terminal
	// EventMessageEnd has been delivered.
	Next() (Event, error)

	// Close releases resources held by the stream. Safe to call after Next
	// has returned an error or after the terminal event. Cancelling ctx
	// passed to Provider.Stream is the mechanism for early termination;
	// Close itself performs local cleanup only.
	Close() error
}

// Provider is the capability interface the driver depends on. Adapters
// translate their vendor's native streaming protocol into Event sequences.
type Provider interface {
	// Stream opens a streaming call. ctx governs the lifetime of the
	// underlying transport; cancelling it tears down the stream at its next
	// suspension point.
	Stream(ctx context.Context, req Request) (Stream, error)
}

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. Callers must not retry in a tight loop.
var ErrRateLimited = errors.New("provider: rate limited")
