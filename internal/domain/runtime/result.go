package runtime

import (
	"time"

	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
)

// Stats is the `stats` member of the §4/§9 execution result shape.
type Stats struct {
	DurationMS     int64
	ToolCallCount  int64
	IterationCount int64
	Start          time.Time
	End            time.Time
}

// Result is the fixed execution-result shape from §9: success carries a
// value, failure always carries a SandboxError with a code from the fixed
// taxonomy, per "success=false always carries an error.code from the
// fixed enumeration."
type Result struct {
	Success bool
	Value   any
	Err     *sandboxerr.SandboxError
	Stats   Stats
}

// Succeeded builds a successful Result.
func Succeeded(value any, stats Stats) Result {
	return Result{Success: true, Value: value, Stats: stats}
}

// Failed builds a failed Result. err is never nil for a well-formed
// Result — every pipeline stage that fails does so via a *SandboxError.
func Failed(err *sandboxerr.SandboxError, stats Stats) Result {
	return Result{Success: false, Err: err, Stats: stats}
}
