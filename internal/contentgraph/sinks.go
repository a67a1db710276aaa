package contentgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/dgallion1/docsplit/internal/records"
)

// MemorySink collects records in emission order.
type MemorySink struct {
	mu   sync.Mutex
	recs []records.Record
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(_ context.Context, rec records.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

// Records returns a copy of everything emitted so far.
func (s *MemorySink) Records() []records.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]records.Record, len(s.recs))
	copy(out, s.recs)
	return out
}

func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

// JSONLSink writes one JSON record per line.
type JSONLSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLSink(w io.Writer) *JSONLSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLSink{enc: enc}
}

func (s *JSONLSink) Emit(_ context.Context, rec records.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("write record %s: %w", rec.Identity, err)
	}
	return nil
}

var (
	_ records.Sink = (*Client)(nil)
	_ records.Sink = (*MemorySink)(nil)
	_ records.Sink = (*JSONLSink)(nil)
)
