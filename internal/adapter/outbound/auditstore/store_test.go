package auditstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentscript/sentinel-enclave/internal/domain/audit"
	"github.com/agentscript/sentinel-enclave/internal/domain/toolrisk"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAppendAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []audit.ExecutionRecord{
		{
			ExecutionID: "exec-1",
			PresetName:  "standard",
			Timestamp:   time.Now(),
			Success:     true,
			DurationMS:  12,
			ToolCalls: []audit.ToolCallRecord{
				{CallID: "call-1", Name: "search", Risk: toolrisk.RiskLevelLow, Allowed: true},
			},
		},
		{
			ExecutionID:  "exec-2",
			PresetName:   "restricted",
			Timestamp:    time.Now(),
			Success:      false,
			ErrorCode:    "VALIDATION_ERROR",
			ErrorMessage: "UNKNOWN_GLOBAL: eval",
			DurationMS:   3,
		},
	}

	for _, r := range records {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append(%s): %v", r.ExecutionID, err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM executions`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != len(records) {
		t.Fatalf("expected %d rows, got %d", len(records), count)
	}
}

func TestStoreAppendPersistsToolCalls(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := audit.ExecutionRecord{
		ExecutionID: "exec-tools",
		PresetName:  "standard",
		Timestamp:   time.Now(),
		Success:     true,
		ToolCalls: []audit.ToolCallRecord{
			{CallID: "call-1", Name: "fs.readFile", Risk: toolrisk.RiskLevelMedium, Allowed: true},
			{CallID: "call-2", Name: "fs.deleteFile", Risk: toolrisk.RiskLevelCritical, Allowed: false},
		},
	}
	if err := s.Append(ctx, record); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var toolCallsJSON string
	if err := s.db.QueryRowContext(ctx,
		`SELECT tool_calls_json FROM executions WHERE execution_id = ?`, record.ExecutionID,
	).Scan(&toolCallsJSON); err != nil {
		t.Fatalf("query: %v", err)
	}
	if toolCallsJSON == "" || toolCallsJSON == "[]" {
		t.Fatalf("expected tool_calls_json to carry both calls, got %q", toolCallsJSON)
	}
}

func TestStoreFlushAndCloseAreSafe(t *testing.T) {
	s := openTestStore(t)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// A second Close must not panic even though the db is already closed.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestStoreOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}
