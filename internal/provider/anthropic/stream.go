package anthropic

import (
	"context"
	"io"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"cueso/internal/provider"
)

// streamAdapter drives an Anthropic SSE stream on a background goroutine and
// republishes its content as normalized provider.Events over a channel, so
// Next can be interrupted by context cancellation at any suspension point.
type streamAdapter struct {
	ctx    context.Context
	cancel context.CancelFunc
	raw    *ssestream.Stream[sdk.MessageStreamEventUnion]

	events chan provider.Event

	mu       sync.Mutex
	finalErr error
	errSet   bool
}

func newStreamAdapter(ctx context.Context, raw *ssestream.Stream[sdk.MessageStreamEventUnion], nameMap map[string]string) *streamAdapter {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamAdapter{
		ctx:    cctx,
		cancel: cancel,
		raw:    raw,
		events: make(chan provider.Event, 32),
	}
	go s.run(nameMap)
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

// run translates Anthropic's typed content-block events into the normalized
// sequence. A MessageStopEvent yields EventMessageEnd with the mapped stop
// reason and a transport failure yields EventMessageEnd with FinishError; if
// the SSE stream ends cleanly without a MessageStopEvent, the channel closes
// with no EventMessageEnd. Tool-call argument fragments are forwarded as-is;
// their JSON validity is not checked here.
func (s *streamAdapter) run(nameMap map[string]string) {
	defer close(s.events)

	toolIndex := map[int]*toolSlot{}
	stopReason := provider.FinishEndTurn

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		if !s.raw.Next() {
			if err := s.raw.Err(); err != nil {
				if !s.emit(provider.Event{Type: provider.EventMessageEnd, FinishReason: provider.FinishError}) {
					return
				}
				s.setErr(err)
			}
			return
		}
		event := s.raw.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockStartEvent:
			idx := int(ev.Index)
			if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				name := toolUse.Name
				if canon, ok := nameMap[name]; ok {
					name = canon
				}
				toolIndex[idx] = &toolSlot{id: toolUse.ID, name: name}
				if !s.emit(provider.Event{
					Type:         provider.EventToolCallStart,
					Index:        idx,
					ToolCallID:   toolUse.ID,
					ToolCallName: name,
				}) {
					return
				}
			}
		case sdk.ContentBlockDeltaEvent:
			idx := int(ev.Index)
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text == "" {
					continue
				}
				if !s.emit(provider.Event{Type: provider.EventContentDelta, Text: delta.Text}) {
					return
				}
			case sdk.InputJSONDelta:
				if delta.PartialJSON == "" {
					continue
				}
				slot := toolIndex[idx]
				if slot == nil {
					continue
				}
				if !s.emit(provider.Event{
					Type:         provider.EventToolCallArgDelta,
					Index:        idx,
					ToolCallID:   slot.id,
					ToolCallName: slot.name,
					JSONFragment: delta.PartialJSON,
				}) {
					return
				}
			}
		case sdk.ContentBlockStopEvent:
			idx := int(ev.Index)
			if toolIndex[idx] != nil {
				if !s.emit(provider.Event{Type: provider.EventToolCallEnd, Index: idx}) {
					return
				}
				delete(toolIndex, idx)
			}
		case sdk.MessageDeltaEvent:
			stopReason = mapStopReason(string(ev.Delta.StopReason))
		case sdk.MessageStopEvent:
			if !s.emit(provider.Event{Type: provider.EventMessageEnd, FinishReason: stopReason}) {
				return
			}
			return
		}
	}
}

type toolSlot struct {
	id   string
	name string
}

func mapStopReason(raw string) provider.FinishReason {
	switch raw {
	case "end_turn", "":
		return provider.FinishEndTurn
	case "tool_use":
		return provider.FinishToolUse
	case "max_tokens":
		return provider.FinishLength
	case "stop_sequence":
		return provider.FinishStopSequence
	default:
		return provider.FinishError
	}
}
