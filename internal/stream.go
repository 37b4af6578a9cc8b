package internal

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Stream event types emitted by the assistant backend
const (
	EventStart = "start"
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
)

// StreamEvent is one incremental event from the assistant response stream.
type StreamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DeltaData is the payload of a delta event.
type DeltaData struct {
	Text string `json:"text"`
}

// DoneData is the payload of a done event: the authoritative final text
// plus any actions the assistant proposes.
type DoneData struct {
	Content         string           `json:"content"`
	ProposedActions []ProposedAction `json:"proposed_actions,omitempty"`
	ConversationID  string           `json:"conversation_id,omitempty"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message string `json:"message"`
}

// Delta decodes the event payload as delta data.
func (e StreamEvent) Delta() (DeltaData, error) {
	var data DeltaData
	err := json.Unmarshal(e.Data, &data)
	return data, err
}

// Done decodes the event payload as done data.
func (e StreamEvent) Done() (DoneData, error) {
	var data DoneData
	err := json.Unmarshal(e.Data, &data)
	return data, err
}

// ErrorMessage decodes the event payload as error data.
func (e StreamEvent) ErrorMessage() (ErrorData, error) {
	var data ErrorData
	err := json.Unmarshal(e.Data, &data)
	return data, err
}

// maxStreamLineSize bounds a single event line; large final contents fit
// comfortably under 1 MiB.
const maxStreamLineSize = 1 << 20

// DecodeStream reads server-sent events from r and invokes handler for
// each decoded event, in arrival order. Lines that are not data fields or
// that fail to parse are skipped. Decoding stops after a done or error
// event, at end of stream, or when handler returns an error.
func DecodeStream(r io.Reader, handler func(StreamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// Ignore other SSE fields (event:, id:, retry:)
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			LogDebug("Skipping malformed stream line: %v", err)
			continue
		}

		if err := handler(event); err != nil {
			return err
		}

		if event.Type == EventDone || event.Type == EventError {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return &StreamError{Stage: "read", Err: err}
	}
	return nil
}
