package brokerauth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMaskPrincipal(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"A", "*"},
		{"AB", "**"},
		{"U100", "U1**"},
		{"trader-007", "tr********"},
	}
	for _, tc := range tests {
		if got := MaskPrincipal(tc.in); got != tc.want {
			t.Errorf("MaskPrincipal(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskSessionID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"short", "*****"},
		{"12345678", "********"},
		{"123456789abc", "12345678****"},
	}
	for _, tc := range tests {
		if got := MaskSessionID(tc.in); got != tc.want {
			t.Errorf("MaskSessionID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"192.168.1.10", "192.168.1.x"},
		{"203.0.113.5", "203.0.113.x"},
		{"2001:db8::1", "masked"},
		{"localhost", "masked"},
	}
	for _, tc := range tests {
		if got := MaskIP(tc.in); got != tc.want {
			t.Errorf("MaskIP(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLogAccessMasksRecordFields(t *testing.T) {
	sink := NewChannelSink(4)
	auditor := NewAuditor(AuditConfig{Enabled: true, BufferSize: 4}, sink)
	defer auditor.Close()

	sctx := validTestContext(t)
	auditor.LogAccess(context.Background(), sctx, "session.validate", true, "")

	select {
	case record := <-sink.Records():
		if record.UserID != "U1**" {
			t.Fatalf("user id not masked: %q", record.UserID)
		}
		if record.SessionID != "sess-111****" {
			t.Fatalf("session id not masked: %q", record.SessionID)
		}
		if record.IP != "192.168.1.x" {
			t.Fatalf("ip not masked: %q", record.IP)
		}
		if record.CorrelationID != sctx.CorrelationID {
			t.Fatalf("correlation id = %q", record.CorrelationID)
		}
		if strings.Contains(record.UserID+record.SessionID+record.IP, "U100") {
			t.Fatal("raw identifier leaked into the record")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no record emitted")
	}
}

func TestLogAccessNilContextStillRecorded(t *testing.T) {
	sink := NewChannelSink(4)
	auditor := NewAuditor(AuditConfig{Enabled: true, BufferSize: 4}, sink)
	defer auditor.Close()

	auditor.LogAccess(context.Background(), nil, "session.validate", false, CodeContextInvalid)

	select {
	case record := <-sink.Records():
		if record.Success || record.ErrorCode != string(CodeContextInvalid) {
			t.Fatalf("denial not recorded: %+v", record)
		}
		if record.Operation != "session.validate" {
			t.Fatalf("operation = %q", record.Operation)
		}
		if record.CorrelationID != "" || record.UserID != "" || record.SessionID != "" {
			t.Fatalf("identity fields set without a context: %+v", record)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no record emitted for nil context")
	}
}

func TestDisabledAuditorIsNoOp(t *testing.T) {
	auditor := NewAuditor(AuditConfig{Enabled: false}, NewChannelSink(1))
	defer auditor.Close()

	// Must not panic or block.
	auditor.LogAccess(context.Background(), validTestContext(t), "session.validate", true, "")
	if auditor.Dropped() != 0 {
		t.Fatalf("disabled auditor dropped %d", auditor.Dropped())
	}
}

func TestAuditorDropsWhenFull(t *testing.T) {
	// An unread channel sink stalls the dispatcher: with DropIfFull the
	// overflow is counted, never blocked on.
	sink := NewChannelSink(1)
	auditor := NewAuditor(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	sctx := validTestContext(t)
	for i := 0; i < 50; i++ {
		auditor.LogAccess(context.Background(), sctx, "session.validate", true, "")
	}

	deadline := time.Now().Add(2 * time.Second)
	for auditor.Dropped() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no drops recorded with a stalled sink")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Unstall the sink so Close can drain and join the dispatcher.
	go func() {
		for range sink.Records() {
		}
	}()
	auditor.Close()
}

func TestJSONWriterSinkEmitsOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditRecord{Operation: "session.validate", Success: true})
	sink.Emit(context.Background(), AuditRecord{Operation: "session.revoke", Success: false, ErrorCode: "AUTHORIZATION_FAILED"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}

	var record AuditRecord
	if err := json.Unmarshal([]byte(lines[1]), &record); err != nil {
		t.Fatalf("line not valid JSON: %v", err)
	}
	if record.Operation != "session.revoke" || record.ErrorCode != "AUTHORIZATION_FAILED" {
		t.Fatalf("record = %+v", record)
	}
}
