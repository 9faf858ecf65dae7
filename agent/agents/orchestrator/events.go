package orchestrator

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

const (
	EventToken   = "token"
	EventMessage = "message"
	EventTool    = "tool"
	EventDone    = "done"
)

// Event is one client-facing item of a streamed turn. The set of implementations is closed.
type Event interface {
	Type() string
	isEvent()
}

type TokenEvent struct {
	Content string
}

type MessageEvent struct {
	Content string
}

type ToolEvent struct {
	ToolName string
	Output   any
}

type DoneEvent struct{}

func (TokenEvent) Type() string   { return EventToken }
func (MessageEvent) Type() string { return EventMessage }
func (ToolEvent) Type() string    { return EventTool }
func (DoneEvent) Type() string    { return EventDone }

func (TokenEvent) isEvent()   {}
func (MessageEvent) isEvent() {}
func (ToolEvent) isEvent()    {}
func (DoneEvent) isEvent()    {}

func (e TokenEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}{Type: EventToken, Content: e.Content})
}

func (e MessageEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}{Type: EventMessage, Content: e.Content})
}

func (e ToolEvent) MarshalJSON() ([]byte, error) {
	return marshalEvent(struct {
		Type     string `json:"type"`
		ToolName string `json:"tool_name"`
		Output   any    `json:"output"`
	}{Type: EventTool, ToolName: e.ToolName, Output: e.Output})
}

func (DoneEvent) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"done"}`), nil
}

// marshalEvent leaves <, > and & as is; model text reaches clients verbatim.
func marshalEvent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// EventSink receives events in emission order. Returning an error stops further delivery
// for the turn; the turn itself keeps running.
type EventSink func(Event) error

type noticeKind int

const (
	noticeModelChunk noticeKind = iota
	noticeModelEnd
	noticeToolEnd
	noticeTurnEnd
)

// notice is a lifecycle notification from the loop, before translation.
type notice struct {
	kind   noticeKind
	text   string
	tool   string
	output string
}

// translate maps a notice to its client event. ok is false when there is nothing to emit.
func translate(n notice) (Event, bool) {
	switch n.kind {
	case noticeModelChunk:
		if n.text == "" {
			return nil, false
		}
		return TokenEvent{Content: n.text}, true
	case noticeModelEnd:
		if strings.TrimSpace(n.text) == "" {
			return nil, false
		}
		return MessageEvent{Content: n.text}, true
	case noticeToolEnd:
		if n.tool == "" {
			return nil, false
		}
		return ToolEvent{ToolName: n.tool, Output: decodeToolOutput(n.output)}, true
	case noticeTurnEnd:
		return DoneEvent{}, true
	default:
		return nil, false
	}
}

// decodeToolOutput returns the decoded JSON value, or the raw string when it is not JSON.
func decodeToolOutput(raw string) any {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return raw
	}
	return decoded
}

type emitter struct {
	sink   EventSink
	logger zerolog.Logger
	err    error
}

func newEmitter(sink EventSink, logger zerolog.Logger) *emitter {
	return &emitter{sink: sink, logger: logger}
}

func (e *emitter) notify(n notice) {
	if e == nil || e.sink == nil || e.err != nil {
		return
	}
	ev, ok := translate(n)
	if !ok {
		return
	}
	if err := e.sink(ev); err != nil {
		e.err = err
		e.logger.Debug().Err(err).Str("event_type", ev.Type()).Msg("event delivery stopped")
	}
}
