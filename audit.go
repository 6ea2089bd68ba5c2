package brokerauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditRecord is the masked access record the pipeline emits for every
// mediated operation, success or failure. All principal-identifying fields
// are masked before the record leaves the auditor; a record never contains a
// token, secret, or unmasked identifier.
type AuditRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	CorrelationID  string    `json:"correlation_id"`
	Operation      string    `json:"operation"`
	UserID         string    `json:"user_id,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	ClientID       string    `json:"client_id,omitempty"`
	IP             string    `json:"ip,omitempty"`
	RequiredLevel  string    `json:"required_level"`
	AttributeCount int       `json:"attribute_count"`
	Success        bool      `json:"success"`
	ErrorCode      string    `json:"error_code,omitempty"`
}

// AuditSink receives emitted audit records.
type AuditSink interface {
	Emit(ctx context.Context, record AuditRecord)
}

// NoOpSink drops audit records.
type NoOpSink struct{}

// Emit implements [AuditSink].
func (NoOpSink) Emit(context.Context, AuditRecord) {}

// ChannelSink writes audit records into a buffered channel.
type ChannelSink struct {
	records chan AuditRecord
}

// NewChannelSink creates a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		records: make(chan AuditRecord, buffer),
	}
}

// Emit implements [AuditSink].
func (s *ChannelSink) Emit(ctx context.Context, record AuditRecord) {
	select {
	case s.records <- record:
	case <-ctx.Done():
	}
}

// Records exposes the drain side of the sink.
func (s *ChannelSink) Records() <-chan AuditRecord {
	return s.records
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a [JSONWriterSink] over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit implements [AuditSink]. Marshal failures are swallowed: auditing never
// fails the pipeline.
func (s *JSONWriterSink) Emit(ctx context.Context, record AuditRecord) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
