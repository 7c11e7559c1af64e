// Package audit contains the domain types for one execution's audit
// trail: a single record per ExecutionResult, plus the redaction helpers
// used to keep tool-call arguments out of the durable log.
package audit

import (
	"strings"
	"time"

	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
	"github.com/agentscript/sentinel-enclave/internal/domain/toolrisk"
)

// ToolCallRecord is one mediated __safe_callTool invocation observed
// during an execution, enriched with toolrisk's audit-only risk label
// (§12.5 — risk never gates execution, it only shapes how a call is
// logged).
type ToolCallRecord struct {
	CallID    string
	Name      string
	Risk      toolrisk.RiskLevel
	Allowed   bool
	Arguments map[string]any
}

// ExecutionRecord is the single row §12.3 persists per execution: one
// ExecutionResult's worth of identifying information, counters, and a
// redacted error when the run failed.
type ExecutionRecord struct {
	ExecutionID    string
	PresetName     string
	Timestamp      time.Time
	Success        bool
	ErrorCode      string
	ErrorMessage   string
	DurationMS     int64
	ToolCallCount  int64
	IterationCount int64
	ToolCalls      []ToolCallRecord
}

// FromSandboxError builds the error-facing fields of an ExecutionRecord
// from a failed execution's error: its code and message. The error's stack
// is not carried into the record.
func FromSandboxError(err *sandboxerr.SandboxError) (code, message string) {
	if err == nil {
		return "", ""
	}
	return string(err.Code), err.Message
}

// sensitiveKeywords lists substrings that indicate a sensitive argument
// key. Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private_key", "privatekey",
}

// RedactSensitiveArgs returns a copy of args with sensitive values masked.
// A key is considered sensitive if it contains any of the
// sensitiveKeywords (case-insensitive). Values are replaced with
// "***REDACTED***", matching the teacher's compliance-log redaction
// convention.
func RedactSensitiveArgs(args map[string]any) map[string]any {
	if len(args) == 0 {
		return args
	}
	redacted := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveKey(k) {
			redacted[k] = "***REDACTED***"
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
