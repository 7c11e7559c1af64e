package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.ValidationRejectsTotal == nil {
		t.Error("ValidationRejectsTotal not initialized")
	}
	if m.TransformDuration == nil {
		t.Error("TransformDuration not initialized")
	}
	if m.ExecutionDuration == nil {
		t.Error("ExecutionDuration not initialized")
	}
	if m.ResourceCeilingBreaches == nil {
		t.Error("ResourceCeilingBreaches not initialized")
	}
	if m.ExecutionsTotal == nil {
		t.Error("ExecutionsTotal not initialized")
	}
	if m.ToolCallsTotal == nil {
		t.Error("ToolCallsTotal not initialized")
	}
}

func TestRecordValidationReject(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordValidationReject("UNKNOWN_GLOBAL")
	m.RecordValidationReject("UNKNOWN_GLOBAL")

	count := testutil.ToFloat64(m.ValidationRejectsTotal.WithLabelValues("UNKNOWN_GLOBAL"))
	if count != 2 {
		t.Errorf("ValidationRejectsTotal = %v, want 2", count)
	}
}

func TestObserveExecutionRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveExecution(50*time.Millisecond, true)
	m.ObserveExecution(10*time.Millisecond, false)

	success := testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("success"))
	if success != 1 {
		t.Errorf("ExecutionsTotal{success} = %v, want 1", success)
	}
	failure := testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("failure"))
	if failure != 1 {
		t.Errorf("ExecutionsTotal{failure} = %v, want 1", failure)
	}

	gathered, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range gathered {
		if strings.Contains(mf.GetName(), "execution_duration") {
			found = true
			break
		}
	}
	if !found {
		t.Error("execution_duration histogram not found in gathered metrics")
	}
}

func TestRecordToolCallLabelsAllowed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordToolCall("search", true)
	m.RecordToolCall("fs.deleteFile", false)

	allowed := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("search", "true"))
	if allowed != 1 {
		t.Errorf("ToolCallsTotal{search,true} = %v, want 1", allowed)
	}
	blocked := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("fs.deleteFile", "false"))
	if blocked != 1 {
		t.Errorf("ToolCallsTotal{fs.deleteFile,false} = %v, want 1", blocked)
	}
}

func TestRecordResourceCeilingBreach(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordResourceCeilingBreach("RESOURCE_EXCEEDED")

	count := testutil.ToFloat64(m.ResourceCeilingBreaches.WithLabelValues("RESOURCE_EXCEEDED"))
	if count != 1 {
		t.Errorf("ResourceCeilingBreaches = %v, want 1", count)
	}
}
