package driver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"cueso/internal/model"
	"cueso/internal/provider"
	"cueso/internal/session"
	"cueso/internal/telemetry"
)

// ToolRouter is the subset of the tool registry the driver depends on: the
// catalog offered to the provider, the pause-after policy, and execution
// routing. internal/registry.Registry satisfies this.
type ToolRouter interface {
	Definitions() []model.ToolDefinition
	PauseAfter(name string) bool
	Execute(ctx context.Context, call model.ToolCall) model.ToolResult
}

// Driver runs the tool-calling loop for a session. A Driver is stateless
// and shared across sessions; all mutable state lives in the session.Session
// value passed to Run.
type Driver struct {
	Provider provider.Provider
	Tools    ToolRouter
	Logger   telemetry.Logger
	Tracer   telemetry.Tracer
	Metrics  telemetry.Metrics
}

// Run is the output of one driver invocation: a lazy sequence of Events
// terminated by exactly one Final (none when ctx is cancelled), plus the
// session state as it stood when
// the run stopped (available via FinalSession after Events is drained).
type Run struct {
	Events <-chan Event

	mu    sync.Mutex
	final session.Session
}

// FinalSession returns the session state as of the end of the run. Callers
// must fully drain Events (until the channel closes) before calling this.
func (r *Run) FinalSession() session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.final
}

// New constructs a Driver. Logger, Tracer, and Metrics default to no-ops when
// nil.
func New(p provider.Provider, tools ToolRouter, logger telemetry.Logger, tracer telemetry.Tracer, metrics telemetry.Metrics) *Driver {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Driver{Provider: p, Tools: tools, Logger: logger, Tracer: tracer, Metrics: metrics}
}

// Run drives sess through the generate→stream→accumulate→dispatch→re-prompt
// loop for a single user turn (spec.md §4.4). ctx governs cancellation: a
// cancellation observed at a suspension point tears the run down without
// appending any partial assistant message and without emitting Final,
// mirroring a client disconnect (§4.5, §5).
func (d *Driver) Run(ctx context.Context, sess session.Session, userMessage string) *Run {
	events := make(chan Event, 16)
	run := &Run{Events: events}

	go func() {
		final := d.runLoop(ctx, sess, userMessage, events)
		run.mu.Lock()
		run.final = final
		run.mu.Unlock()
		close(events)
	}()

	return run
}

func (d *Driver) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Driver) runLoop(ctx context.Context, sess session.Session, userMessage string, events chan<- Event) session.Session {
	sess.Messages = append(sess.Messages, model.Message{Role: model.RoleUser, Content: userMessage})
	// The iteration bound applies per Run: each user turn counts from zero.
	sess.IterationCount = 0
	cfg := sess.Config.Normalize()
	defs := filterTools(d.Tools.Definitions(), cfg.Tools)

	for sess.IterationCount < cfg.MaxIterations {
		select {
		case <-ctx.Done():
			return sess
		default:
		}
		sess.IterationCount++

		req := provider.Request{
			Messages:     sess.Messages,
			Tools:        defs,
			SystemPrompt: cfg.SystemPrompt,
		}
		if cfg.ProviderOverrides != nil {
			req.Model = cfg.ProviderOverrides.Model
			req.Temperature = cfg.ProviderOverrides.Temperature
		}

		streamCtx, span := d.Tracer.Start(ctx, "driver.provider_stream")
		streamStart := time.Now()

		stream, err := d.Provider.Stream(streamCtx, req)
		if err != nil {
			d.endStreamSpan(span, streamStart, err)
			if ctxDone(ctx) {
				return sess
			}
			d.logger().Error(ctx, "provider stream open failed", "error", err)
			if !d.emit(ctx, events, Event{Type: EventMessageComplete, FinishReason: string(provider.FinishError)}) {
				return sess
			}
			d.emit(ctx, events, Event{Type: EventFinal, IterationCount: sess.IterationCount})
			return sess
		}

		content, toolCalls, names, finishReason, canceled, transportErr := d.consumeStream(streamCtx, stream, events)
		stream.Close()

		switch {
		case canceled:
			d.endStreamSpan(span, streamStart, context.Canceled)
		case transportErr:
			d.endStreamSpan(span, streamStart, errors.New("provider stream transport error"))
		default:
			d.endStreamSpan(span, streamStart, nil)
		}

		if canceled {
			return sess
		}

		if transportErr || finishReason == provider.FinishError {
			if !d.emit(ctx, events, Event{Type: EventMessageComplete, Content: content, FinishReason: string(provider.FinishError)}) {
				return sess
			}
			d.emit(ctx, events, Event{Type: EventFinal, Content: content, IterationCount: sess.IterationCount})
			return sess
		}

		sess.Messages = append(sess.Messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})

		if !d.emit(ctx, events, Event{
			Type:          EventMessageComplete,
			Content:       content,
			ToolCallNames: names,
			FinishReason:  string(finishReason),
		}) {
			return sess
		}

		if len(toolCalls) == 0 {
			d.emit(ctx, events, Event{Type: EventFinal, Content: content, IterationCount: sess.IterationCount})
			return sess
		}

		results, canceled := d.dispatchTools(ctx, toolCalls, events)
		if canceled {
			return sess
		}

		for i, call := range toolCalls {
			sess.Messages = append(sess.Messages, model.Message{
				Role:       model.RoleTool,
				Content:    results[i].Content,
				ToolCallID: call.ID,
			})
		}

		paused := false
		for _, name := range names {
			if d.Tools.PauseAfter(name) {
				paused = true
				break
			}
		}
		if paused {
			d.emit(ctx, events, Event{
				Type:           EventFinal,
				ToolCallNames:  names,
				IterationCount: sess.IterationCount,
				Paused:         true,
			})
			return sess
		}
	}

	d.emit(ctx, events, Event{
		Type:           EventFinal,
		Content:        lastAssistantContent(sess.Messages),
		IterationCount: sess.IterationCount,
	})
	return sess
}

type partialCall struct {
	id, name    string
	buf         strings.Builder
	args        json.RawMessage
	unparseable bool
}

// consumeStream drains one provider stream, emitting ContentDelta and
// ToolCallDelta events as they arrive, and returns the accumulated
// assistant content plus the finalized tool calls in call order.
func (d *Driver) consumeStream(ctx context.Context, stream provider.Stream, events chan<- Event) (content string, calls []model.ToolCall, names []string, finishReason provider.FinishReason, canceled, transportErr bool) {
	var contentAccum strings.Builder
	partials := map[int]*partialCall{}
	var order []int
	finishReason = provider.FinishEndTurn

	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", nil, nil, "", true, false
			}
			transportErr = true
			finishReason = provider.FinishError
			break
		}
		switch ev.Type {
		case provider.EventContentDelta:
			contentAccum.WriteString(ev.Text)
			if !d.emit(ctx, events, Event{Type: EventContentDelta, Text: ev.Text}) {
				return "", nil, nil, "", true, false
			}
		case provider.EventToolCallStart:
			pc := &partialCall{id: ev.ToolCallID, name: ev.ToolCallName}
			partials[ev.Index] = pc
			order = append(order, ev.Index)
			if !d.emit(ctx, events, Event{Type: EventToolCallDelta, ToolCallID: pc.id, ToolCallName: pc.name}) {
				return "", nil, nil, "", true, false
			}
		case provider.EventToolCallArgDelta:
			pc := partials[ev.Index]
			if pc == nil {
				continue
			}
			pc.buf.WriteString(ev.JSONFragment)
			if !d.emit(ctx, events, Event{
				Type:             EventToolCallDelta,
				ToolCallID:       pc.id,
				ToolCallName:     pc.name,
				InputFragment:    ev.JSONFragment,
				HasInputFragment: true,
			}) {
				return "", nil, nil, "", true, false
			}
		case provider.EventToolCallEnd:
			pc := partials[ev.Index]
			if pc == nil {
				continue
			}
			raw := pc.buf.String()
			if strings.TrimSpace(raw) == "" {
				raw = "{}"
			}
			if json.Valid([]byte(raw)) {
				pc.args = json.RawMessage(raw)
			} else {
				pc.unparseable = true
			}
		case provider.EventMessageEnd:
			finishReason = ev.FinishReason
		}
		if ev.Type == provider.EventMessageEnd {
			break
		}
	}

	calls = make([]model.ToolCall, 0, len(order))
	names = make([]string, 0, len(order))
	for _, idx := range order {
		pc := partials[idx]
		args := pc.args
		if !pc.unparseable && args == nil {
			args = json.RawMessage("{}")
		}
		// args remains nil when unparseable: dispatchTools treats nil
		// Arguments as the unparseable marker and synthesizes an error
		// result without invoking the executor.
		calls = append(calls, model.ToolCall{ID: pc.id, Name: pc.name, Arguments: args})
		names = append(names, pc.name)
	}
	return contentAccum.String(), calls, names, finishReason, false, transportErr
}

// dispatchTools executes every call concurrently. Wire ToolResult events are
// emitted in completion order as results arrive; the returned slice
// preserves call order for deterministic history append, per spec.md §5.
func (d *Driver) dispatchTools(ctx context.Context, calls []model.ToolCall, events chan<- Event) (results []model.ToolResult, canceled bool) {
	results = make([]model.ToolResult, len(calls))
	var wg sync.WaitGroup
	var mu sync.Mutex
	emitCanceled := false

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()
			spanCtx, span := d.Tracer.Start(ctx, "driver.tool_dispatch")
			start := time.Now()
			tags := []string{"tool", call.Name}

			var result model.ToolResult
			if call.Arguments == nil {
				result = model.ToolResult{ToolCallID: call.ID, Content: "tool arguments were not valid JSON", Error: true}
			} else {
				result = d.Tools.Execute(spanCtx, call)
			}

			d.metrics().RecordTimer("driver.tool_dispatch.duration", time.Since(start), tags...)
			if result.Error {
				span.SetStatus(codes.Error, result.Content)
				d.metrics().IncCounter("driver.tool_dispatch.error", 1, tags...)
			} else {
				span.SetStatus(codes.Ok, "")
				d.metrics().IncCounter("driver.tool_dispatch.success", 1, tags...)
			}
			span.End()

			mu.Lock()
			results[i] = result
			mu.Unlock()
			if !d.emit(ctx, events, Event{
				Type:       EventToolResult,
				ToolCallID: result.ToolCallID,
				ToolName:   call.Name,
				Result:     result.Content,
				Error:      result.Error,
			}) {
				mu.Lock()
				emitCanceled = true
				mu.Unlock()
			}
		}(i, call)
	}
	wg.Wait()

	if ctxDone(ctx) || emitCanceled {
		return results, true
	}
	return results, false
}

func (d *Driver) logger() telemetry.Logger {
	if d.Logger == nil {
		return telemetry.NewNoopLogger()
	}
	return d.Logger
}

// endStreamSpan closes the span opened around a provider stream call,
// recording the outcome and the stream's wall-clock duration.
func (d *Driver) endStreamSpan(span telemetry.Span, start time.Time, err error) {
	d.metrics().RecordTimer("driver.provider_stream.duration", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.metrics().IncCounter("driver.provider_stream.error", 1)
	} else {
		span.SetStatus(codes.Ok, "")
		d.metrics().IncCounter("driver.provider_stream.success", 1)
	}
	span.End()
}

func (d *Driver) metrics() telemetry.Metrics {
	if d.Metrics == nil {
		return telemetry.NewNoopMetrics()
	}
	return d.Metrics
}

// filterTools narrows the full catalog to the names a session opted into.
// An empty allow-list means no restriction: the full catalog is offered.
func filterTools(all []model.ToolDefinition, allow []string) []model.ToolDefinition {
	if len(allow) == 0 {
		return all
	}
	keep := make(map[string]bool, len(allow))
	for _, name := range allow {
		keep[name] = true
	}
	out := make([]model.ToolDefinition, 0, len(all))
	for _, def := range all {
		if keep[def.Name] {
			out = append(out, def)
		}
	}
	return out
}

func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func lastAssistantContent(msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}
