// Package toolrisk labels a mediated tool call with a coarse risk level
// for audit and telemetry purposes. It never gates execution: the
// operation-name allow/block policy in internal/domain/policy remains the
// sole authority over whether a call proceeds.
package toolrisk

import "strings"

// RiskLevel orders calls by how consequential their name suggests they
// are, from Low (safe, informational) to Critical (destructive or
// system-level).
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// criticalPatterns indicates destructive operations or system commands.
var criticalPatterns = []string{
	"delete", "remove", "drop", "destroy", "execute", "exec",
	"shell", "command", "admin", "sudo", "root", "truncate",
}

// highPatterns indicates write operations or network access.
var highPatterns = []string{
	"write", "create", "update", "modify", "send", "post",
	"upload", "deploy", "install", "connect", "put",
}

// mediumPatterns indicates read operations with potential sensitivity.
var mediumPatterns = []string{
	"fetch", "download", "export", "query", "search", "get",
}

// Classify determines the risk level of a tool-call operation name by
// substring pattern, case-insensitive, highest priority first.
//
// Limitations carried over unchanged: simple substring matching means
// "undelete" also matches "delete"; for audit labeling this is
// acceptable, since Classify never gates execution, it only shapes how
// loudly a call is logged.
func Classify(name string) RiskLevel {
	lower := strings.ToLower(name)

	for _, pattern := range criticalPatterns {
		if strings.Contains(lower, pattern) {
			return RiskLevelCritical
		}
	}
	for _, pattern := range highPatterns {
		if strings.Contains(lower, pattern) {
			return RiskLevelHigh
		}
	}
	for _, pattern := range mediumPatterns {
		if strings.Contains(lower, pattern) {
			return RiskLevelMedium
		}
	}
	return RiskLevelLow
}
