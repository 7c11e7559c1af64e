package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/agentscript/sentinel-enclave/internal/ctxkey"
	"github.com/agentscript/sentinel-enclave/internal/domain/audit"
	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
)

type stubHandler struct {
	calls []string
	value any
}

func (s *stubHandler) CallTool(_ context.Context, name string, args map[string]any) (any, error) {
	s.calls = append(s.calls, name)
	return s.value, nil
}

type recordingStore struct {
	records []audit.ExecutionRecord
}

func (r *recordingStore) Append(_ context.Context, record audit.ExecutionRecord) error {
	r.records = append(r.records, record)
	return nil
}
func (r *recordingStore) Flush(context.Context) error { return nil }
func (r *recordingStore) Close() error                { return nil }

func TestEnclaveRunSucceeds(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t)

	e := New(policy.SecurityLevelStandard)
	result := e.Run(context.Background(), RunRequest{Source: "return 1 + 1;"})

	if !result.Success {
		t.Fatalf("expected success, got failure: %+v", result.Err)
	}
	if result.Value != float64(2) {
		t.Fatalf("expected 2, got %v", result.Value)
	}
}

func TestEnclaveRunRejectsDisallowedIdentifier(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t)

	e := New(policy.SecurityLevelStandard)
	result := e.Run(context.Background(), RunRequest{Source: `eval("1");`})

	if result.Success {
		t.Fatalf("expected validation to reject eval(), got success: %+v", result.Value)
	}
	if result.Err.Code != sandboxerr.CodeValidationError {
		t.Fatalf("expected CodeValidationError, got %s", result.Err.Code)
	}
}

func TestEnclaveRunMediatesToolCalls(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t)

	handler := &stubHandler{value: map[string]any{"ok": true}}
	e := New(policy.SecurityLevelStandard, WithToolHandler(handler))

	result := e.Run(context.Background(), RunRequest{
		Source: "async function __ag_main() {\nconst r = await callTool(\"search\", {q: \"x\"});\nreturn r;\n}",
	})

	if !result.Success {
		t.Fatalf("expected success, got failure: %+v", result.Err)
	}
	if len(handler.calls) != 1 || handler.calls[0] != "search" {
		t.Fatalf("expected exactly one call to search, got %+v", handler.calls)
	}
}

func TestEnclaveRunRecordsAuditOnSuccessAndFailure(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t)

	store := &recordingStore{}
	e := New(policy.SecurityLevelStandard, WithAuditStore(store))

	e.Run(context.Background(), RunRequest{Source: "return 1;"})
	e.Run(context.Background(), RunRequest{Source: `eval("1");`})

	if len(store.records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(store.records))
	}
	if !store.records[0].Success {
		t.Fatalf("expected the first record to reflect success: %+v", store.records[0])
	}
	if store.records[1].Success {
		t.Fatalf("expected the second record to reflect failure: %+v", store.records[1])
	}
	if store.records[1].ErrorCode != string(sandboxerr.CodeValidationError) {
		t.Fatalf("expected ErrorCode %s, got %s", sandboxerr.CodeValidationError, store.records[1].ErrorCode)
	}
}

func TestEnclaveRunBlocksToolCallsDeniedByPolicy(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t)

	handler := &stubHandler{value: "unused"}
	e := New(policy.SecurityLevelStandard,
		WithToolHandler(handler),
		WithOperationPolicy(policy.OperationPolicy{Block: denyAll{}}),
	)

	result := e.Run(context.Background(), RunRequest{
		Source: "async function __ag_main() {\nreturn await callTool(\"fs.deleteFile\", {});\n}",
	})

	if result.Success {
		t.Fatalf("expected the blocked tool call to fail the run, got success: %+v", result.Value)
	}
	if len(handler.calls) != 0 {
		t.Fatalf("expected the handler never to be invoked, got %+v", handler.calls)
	}
}

type denyAll struct{}

func (denyAll) Match(string) (bool, error) { return true, nil }

type failingStore struct{}

func (failingStore) Append(context.Context, audit.ExecutionRecord) error {
	return errors.New("disk full")
}
func (failingStore) Flush(context.Context) error { return nil }
func (failingStore) Close() error                { return nil }

func TestEnclaveRunSurvivesAuditStoreFailure(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t)

	e := New(policy.SecurityLevelStandard, WithAuditStore(failingStore{}))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := context.WithValue(context.Background(), ctxkey.LoggerKey{}, logger)

	result := e.Run(ctx, RunRequest{Source: "return 1;"})
	if !result.Success {
		t.Fatalf("expected success despite the audit store failing, got: %+v", result.Err)
	}
	if !strings.Contains(buf.String(), "failed to persist audit record") {
		t.Fatalf("expected the audit store failure to be logged via the context logger, got: %q", buf.String())
	}
}
