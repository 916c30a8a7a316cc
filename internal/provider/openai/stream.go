package openai

import (
	"context"
	"errors"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"cueso/internal/provider"
)

// streamAdapter drives an OpenAI chat completion stream on a background
// goroutine and republishes it as normalized provider.Events, mirroring the
// Anthropic adapter's channel-based cancellation shape.
type streamAdapter struct {
	ctx    context.Context
	cancel context.CancelFunc
	raw    *openai.ChatCompletionStream

	events chan provider.Event

	mu       sync.Mutex
	finalErr error
	errSet   bool
}

func newStreamAdapter(ctx context.Context, raw *openai.ChatCompletionStream) *streamAdapter {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamAdapter{
		ctx:    cctx,
		cancel: cancel,
		raw:    raw,
		events: make(chan provider.Event, 32),
	}
	go s.run()
	return s
}

func (s *streamAdapter) Next() (provider.Event, error) {
	select {
	case ev, ok := <-s.events:
		if ok {
			return ev, nil
		}
		if err := s.err(); err != nil {
			return provider.Event{}, err
		}
		return provider.Event{}, io.EOF
	case <-s.ctx.Done():
		s.setErr(s.ctx.Err())
		return provider.Event{}, s.ctx.Err()
	}
}

func (s *streamAdapter) Close() error {
	s.cancel()
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

func (s *streamAdapter) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errSet {
		return
	}
	s.errSet = true
	s.finalErr = err
}

func (s *streamAdapter) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

func (s *streamAdapter) emit(ev provider.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// run reads chat completion chunks and tracks, per tool-call index, whether
// a ToolCallStart has already been announced so it can synthesize it once
// and forward every subsequent argument fragment.
func (s *streamAdapter) run() {
	defer close(s.events)

	started := map[int]bool{}
	names := map[int]string{}
	ids := map[int]string{}
	reason := provider.FinishEndTurn

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}

		chunk, err := s.raw.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.emit(provider.Event{Type: provider.EventMessageEnd, FinishReason: reason})
				return
			}
			s.emit(provider.Event{Type: provider.EventMessageEnd, FinishReason: provider.FinishError})
			s.setErr(err)
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			if !s.emit(provider.Event{Type: provider.EventContentDelta, Text: choice.Delta.Content}) {
				return
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if tc.ID != "" {
				ids[idx] = tc.ID
			}
			if tc.Function.Name != "" {
				names[idx] = tc.Function.Name
			}
			if !started[idx] {
				started[idx] = true
				if !s.emit(provider.Event{
					Type:         provider.EventToolCallStart,
					Index:        idx,
					ToolCallID:   ids[idx],
					ToolCallName: names[idx],
				}) {
					return
				}
			}
			if tc.Function.Arguments != "" {
				if !s.emit(provider.Event{
					Type:         provider.EventToolCallArgDelta,
					Index:        idx,
					ToolCallID:   ids[idx],
					ToolCallName: names[idx],
					JSONFragment: tc.Function.Arguments,
				}) {
					return
				}
			}
		}
		if choice.FinishReason != "" {
			reason = mapFinishReason(choice.FinishReason)
			for idx := range started {
				if !s.emit(provider.Event{Type: provider.EventToolCallEnd, Index: idx}) {
					return
				}
			}
		}
	}
}

func mapFinishReason(raw openai.FinishReason) provider.FinishReason {
	switch raw {
	case openai.FinishReasonStop, "":
		return provider.FinishEndTurn
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return provider.FinishToolUse
	case openai.FinishReasonLength:
		return provider.FinishLength
	default:
		return provider.FinishError
	}
}
