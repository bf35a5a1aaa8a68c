package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/atharvkhisti/WebReckon/internal/aggregate"
)

// JSONWriter writes artifacts and runs as JSON documents, one per line when
// not pretty-printed.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{
		writer: w,
		pretty: pretty,
	}
}

// WriteArtifact writes the result artifact.
func (j *JSONWriter) WriteArtifact(a *aggregate.Artifact) error {
	return j.write(a)
}

// WriteRun writes a full run record.
func (j *JSONWriter) WriteRun(r *Run) error {
	return j.write(r)
}

func (j *JSONWriter) write(v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	data, err := marshal(v, j.pretty)
	if err != nil {
		return err
	}

	if _, err := j.writer.Write(data); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func marshal(v interface{}, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
