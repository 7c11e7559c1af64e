package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid EnclaveConfig for testing.
func minimalValidConfig() *EnclaveConfig {
	return &EnclaveConfig{
		Server:      ServerConfig{HTTPAddr: "127.0.0.1:8080", LogLevel: "info"},
		Sandbox:     SandboxConfig{SecurityLevel: "standard"},
		ToolHandler: ToolHandlerConfig{HTTP: "http://localhost:4000/mcp", Timeout: "30s"},
		Audit:       AuditConfig{Enabled: false, Path: "/tmp/audit.db"},
		Telemetry:   TelemetryConfig{ServiceName: "enclave-guardd", Exporter: "stdout"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_NoToolHandler(t *testing.T) {
	t.Parallel()

	// No HTTP/Command set is valid -- every tool call is rejected, which is
	// fine when only validation and transform are being exercised.
	cfg := minimalValidConfig()
	cfg.ToolHandler.HTTP = ""
	cfg.ToolHandler.Command = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with no tool handler unexpected error: %v", err)
	}
}

func TestValidate_BothToolHandlers(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.ToolHandler.HTTP = "http://localhost:4000/mcp"
	cfg.ToolHandler.Command = "/usr/bin/mcp-server"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "not both") {
		t.Errorf("error = %q, want to contain 'not both'", err.Error())
	}
}

func TestValidate_CommandToolHandler(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.ToolHandler.HTTP = ""
	cfg.ToolHandler.Command = "/usr/bin/mcp-server"
	cfg.ToolHandler.Args = []string{"--stdio"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with command tool handler unexpected error: %v", err)
	}
}

func TestValidate_InvalidSecurityLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Sandbox.SecurityLevel = "nonexistent"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid security level, got nil")
	}
	if !strings.Contains(err.Error(), "Sandbox.SecurityLevel") {
		t.Errorf("error = %q, want to contain 'Sandbox.SecurityLevel'", err.Error())
	}
}

func TestValidate_InvalidHTTPAddr(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.HTTPAddr = "not a host:port"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid http_addr, got nil")
	}
	if !strings.Contains(err.Error(), "Server.HTTPAddr") {
		t.Errorf("error = %q, want to contain 'Server.HTTPAddr'", err.Error())
	}
}

func TestValidate_InvalidToolHandlerURL(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.ToolHandler.Command = ""
	cfg.ToolHandler.HTTP = "not-a-url"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid tool_handler url, got nil")
	}
	if !strings.Contains(err.Error(), "ToolHandler.HTTP") {
		t.Errorf("error = %q, want to contain 'ToolHandler.HTTP'", err.Error())
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "Server.LogLevel") {
		t.Errorf("error = %q, want to contain 'Server.LogLevel'", err.Error())
	}
}

func TestValidate_InvalidTelemetryExporter(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Telemetry.Exporter = "jaeger"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid exporter, got nil")
	}
	if !strings.Contains(err.Error(), "Telemetry.Exporter") {
		t.Errorf("error = %q, want to contain 'Telemetry.Exporter'", err.Error())
	}
}

func TestValidate_NegativeSandboxOverride(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Sandbox.MaxIterations = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for negative max_iterations, got nil")
	}
	if !strings.Contains(err.Error(), "Sandbox.MaxIterations") {
		t.Errorf("error = %q, want to contain 'Sandbox.MaxIterations'", err.Error())
	}
}

func TestValidate_ZeroConfig(t *testing.T) {
	t.Parallel()

	// Simulate a user running "enclave-guardd run" with no config file at all.
	cfg := &EnclaveConfig{}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config unexpected error: %v", err)
	}

	if cfg.Sandbox.SecurityLevel != "standard" {
		t.Errorf("default security level = %q, want 'standard'", cfg.Sandbox.SecurityLevel)
	}
	if cfg.Audit.Enabled {
		t.Error("expected audit disabled by default")
	}
}

func TestValidate_EmptyOperationPolicy(t *testing.T) {
	t.Parallel()

	// Empty allow/block lists are valid (allow-all, no blocks).
	cfg := minimalValidConfig()
	cfg.OperationPolicy.Allow = nil
	cfg.OperationPolicy.Block = nil

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with empty operation policy unexpected error: %v", err)
	}
}
