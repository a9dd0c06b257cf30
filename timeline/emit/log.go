package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes one line per event to writer, either human-readable
// key=value text or JSONL.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter writing to writer (os.Stdout if nil).
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] frame=%d nodeID=%d", event.Kind, event.Frame, event.NodeID)
	if event.Label != "" {
		_, _ = fmt.Fprintf(l.writer, " label=%s", event.Label)
	}
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal
// buffer. Wrap writer in a bufio.Writer and flush that directly if needed.
func (l *LogEmitter) Flush(context.Context) error { return nil }
