package audit

import "context"

// Store persists ExecutionRecords. Interface owned by domain per
// hexagonal architecture; the SQLite-backed implementation lives in
// internal/adapter/outbound/auditstore. §12.3 scopes this to an
// append-only execution log — no query/compliance/SOC2 surface, which
// belonged to the teacher's multi-tenant admin product and is out of
// scope here.
type Store interface {
	// Append stores one execution's audit record. Must be non-blocking
	// from the caller's perspective.
	Append(ctx context.Context, record ExecutionRecord) error

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// NopStore discards every record. The default when no audit store is
// configured — §12.3 describes the audit trail as "optional and off by
// default."
type NopStore struct{}

func (NopStore) Append(context.Context, ExecutionRecord) error { return nil }
func (NopStore) Flush(context.Context) error                   { return nil }
func (NopStore) Close() error                                  { return nil }
