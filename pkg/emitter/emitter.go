// Package emitter is the outbound record sink: schemas, shaped records
// with their extraction timestamp, and full-state checkpoints.
package emitter

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/ajitpratap0/formtap/pkg/jsonutil"
	"github.com/ajitpratap0/formtap/pkg/state"
)

// Emitter receives everything the sync engine produces.
type Emitter interface {
	WriteSchema(stream string, schema map[string]interface{}, keyProperties []string) error
	WriteRecord(stream string, record map[string]interface{}, extractedAt time.Time) error
	WriteState(st *state.State) error
}

type schemaMessage struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream"`
	Schema        map[string]interface{} `json:"schema"`
	KeyProperties []string               `json:"key_properties"`
}

type recordMessage struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream"`
	Record        map[string]interface{} `json:"record"`
	TimeExtracted string                 `json:"time_extracted"`
}

type stateMessage struct {
	Type  string       `json:"type"`
	Value *state.State `json:"value"`
}

// JSONLEmitter writes self-describing JSON lines (SCHEMA, RECORD, STATE
// message types) to a writer, normally stdout. Every write is flushed
// before returning so that a state checkpoint never precedes its records
// on the wire.
type JSONLEmitter struct {
	mu  sync.Mutex
	buf *bufio.Writer
}

// NewJSONLEmitter wraps w in a buffered line emitter.
func NewJSONLEmitter(w io.Writer) *JSONLEmitter {
	return &JSONLEmitter{buf: bufio.NewWriterSize(w, 64*1024)}
}

func (e *JSONLEmitter) writeLine(msg interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	enc := jsonutil.NewEncoder(e.buf)
	if err := enc.Encode(msg); err != nil {
		return err
	}
	return e.buf.Flush()
}

// WriteSchema emits a SCHEMA message.
func (e *JSONLEmitter) WriteSchema(stream string, schema map[string]interface{}, keyProperties []string) error {
	return e.writeLine(schemaMessage{
		Type:          "SCHEMA",
		Stream:        stream,
		Schema:        schema,
		KeyProperties: keyProperties,
	})
}

// WriteRecord emits a RECORD message stamped with the extraction time.
func (e *JSONLEmitter) WriteRecord(stream string, record map[string]interface{}, extractedAt time.Time) error {
	return e.writeLine(recordMessage{
		Type:          "RECORD",
		Stream:        stream,
		Record:        record,
		TimeExtracted: extractedAt.UTC().Format(time.RFC3339Nano),
	})
}

// WriteState emits a STATE message carrying the whole state map.
func (e *JSONLEmitter) WriteState(st *state.State) error {
	return e.writeLine(stateMessage{Type: "STATE", Value: st})
}
