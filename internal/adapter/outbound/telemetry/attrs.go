package telemetry

import "go.opentelemetry.io/otel/attribute"

func attrExecutionID(id string) attribute.KeyValue { return attribute.String("enclave.execution_id", id) }
func attrStage(stage Stage) attribute.KeyValue      { return attribute.String("enclave.stage", string(stage)) }
func attrCallID(id string) attribute.KeyValue       { return attribute.String("enclave.tool_call_id", id) }
func attrToolName(name string) attribute.KeyValue   { return attribute.String("enclave.tool_name", name) }
func attrAllowed(allowed bool) attribute.KeyValue   { return attribute.Bool("enclave.tool_call_allowed", allowed) }
