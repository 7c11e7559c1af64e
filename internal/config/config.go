// Package config provides configuration types for the enclave guard
// daemon.
//
// This is a focused configuration schema for a single-purpose JS sandbox
// service, carried over from the teacher's file-based, simplicity-first
// OSS configuration style. It intentionally excludes everything that
// belonged to the teacher's proxy domain:
//
//   - NO upstream MCP proxying / HTTP gateway
//   - NO per-request auth / identities / API keys
//   - NO rate limiting keyed by caller identity
//   - NO admin web interface
//
// The tool-call bridge, audit store, and telemetry sinks below are the
// domain-specific replacements for those concerns.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// EnclaveConfig is the top-level configuration for enclave-guardd.
type EnclaveConfig struct {
	// Server configures the optional HTTP server exposing /metrics and a
	// health check; the core library works without it.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Sandbox configures the default security preset and any field-level
	// overrides applied on top of it (§4.5/§6.2).
	Sandbox SandboxConfig `yaml:"sandbox" mapstructure:"sandbox"`

	// ToolHandler configures how __safe_callTool requests are forwarded
	// to a real MCP tool server.
	ToolHandler ToolHandlerConfig `yaml:"tool_handler" mapstructure:"tool_handler"`

	// OperationPolicy configures the optional CEL-backed allow/block
	// patterns over tool-call operation names (§12.1).
	OperationPolicy OperationPolicyConfig `yaml:"operation_policy" mapstructure:"operation_policy"`

	// Audit configures the optional execution audit trail (§12.3).
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Telemetry configures OpenTelemetry tracing/metrics export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development defaults: SetDevDefaults fills an empty
	// sandbox security level with "permissive" and an empty telemetry
	// exporter with "stdout". It does not change logging.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the optional HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address the metrics/health server listens on.
	// Defaults to "127.0.0.1:8080" if empty. Empty + Enabled=false means
	// no server is started at all.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// Enabled controls whether the metrics/health server starts.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// LogLevel names a minimum log level.
	// Valid values: "debug", "info", "warn", "warning", "error".
	// The run command does not read it and always logs at info.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// SandboxConfig configures the default security preset and overrides
// applied to every execution that doesn't supply its own.
type SandboxConfig struct {
	// SecurityLevel selects the base preset: "strict", "secure",
	// "standard", or "permissive" (§4.5).
	SecurityLevel string `yaml:"security_level" mapstructure:"security_level" validate:"omitempty,oneof=strict secure standard permissive"`

	// CustomGlobals names additional identifiers the validator/transform
	// should treat as host-supplied globals, beyond the preset's base set.
	CustomGlobals []string `yaml:"custom_globals" mapstructure:"custom_globals"`

	// TimeoutMS overrides the preset's wall-clock timeout, if set.
	TimeoutMS int `yaml:"timeout_ms" mapstructure:"timeout_ms" validate:"omitempty,min=1"`
	// MaxIterations overrides the preset's iteration ceiling, if set.
	MaxIterations int64 `yaml:"max_iterations" mapstructure:"max_iterations" validate:"omitempty,min=1"`
	// MaxToolCalls overrides the preset's tool-call ceiling, if set.
	MaxToolCalls int64 `yaml:"max_tool_calls" mapstructure:"max_tool_calls" validate:"omitempty,min=1"`
	// MemoryCeilingBytes overrides the preset's cumulative-byte ceiling, if set.
	MemoryCeilingBytes int64 `yaml:"memory_ceiling_bytes" mapstructure:"memory_ceiling_bytes" validate:"omitempty,min=1"`
	// MaxConsoleCalls overrides the preset's console-call ceiling, if set.
	MaxConsoleCalls int64 `yaml:"max_console_calls" mapstructure:"max_console_calls" validate:"omitempty,min=1"`
	// MaxConsoleOutputBytes overrides the preset's console-byte ceiling, if set.
	MaxConsoleOutputBytes int64 `yaml:"max_console_output_bytes" mapstructure:"max_console_output_bytes" validate:"omitempty,min=1"`
}

// ToolHandlerConfig configures how mediated tool calls reach a real MCP
// server. Either Command (subprocess, stdio transport) or HTTP (remote
// MCP server) may be set, not both.
type ToolHandlerConfig struct {
	// HTTP is the URL of a remote MCP server __safe_callTool forwards to.
	HTTP string `yaml:"http" mapstructure:"http" validate:"omitempty,url"`

	// Command is the path to an MCP server executable to spawn as a
	// stdio-transport subprocess.
	Command string `yaml:"command" mapstructure:"command"`

	// Args are the arguments to pass to Command.
	Args []string `yaml:"args" mapstructure:"args"`

	// Timeout bounds one tool-call round trip (e.g. "30s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
}

// OperationPolicyConfig configures the optional allow/block patterns
// evaluated against a tool-call's operation name (§12.1).
type OperationPolicyConfig struct {
	// Allow, if non-empty, is a glob/CEL pattern list; a name matching
	// none of them is denied. Empty means allow-all.
	Allow []string `yaml:"allow" mapstructure:"allow"`
	// Block is a glob/CEL pattern list checked before Allow; a match
	// denies regardless of Allow.
	Block []string `yaml:"block" mapstructure:"block"`
}

// AuditConfig configures the optional SQLite-backed execution audit log.
type AuditConfig struct {
	// Enabled turns the audit store on. Defaults to false (§12.3 "optional
	// and off by default").
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`
}

// TelemetryConfig configures OpenTelemetry tracing/metrics export.
type TelemetryConfig struct {
	// Enabled turns tracing/metrics export on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServiceName identifies this process in exported spans/metrics.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// Exporter selects the export target: "stdout" or "otlp".
	Exporter string `yaml:"exporter" mapstructure:"exporter" validate:"omitempty,oneof=stdout otlp"`
	// OTLPEndpoint is the collector endpoint when Exporter is "otlp".
	OTLPEndpoint string `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
}

// SetDevDefaults applies permissive defaults for development mode. Applied
// BEFORE validation so required fields are satisfied.
func (c *EnclaveConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Sandbox.SecurityLevel == "" {
		c.Sandbox.SecurityLevel = "permissive"
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "stdout"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *EnclaveConfig) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Sandbox.SecurityLevel == "" {
		c.Sandbox.SecurityLevel = "standard"
	}

	if c.ToolHandler.Timeout == "" {
		c.ToolHandler.Timeout = "30s"
	}

	if c.Audit.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Audit.Path = home + "/.enclave-guardd/audit.db"
		}
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "enclave-guardd"
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "stdout"
	}

	// Only apply when the user hasn't explicitly set it in YAML/env —
	// viper.IsSet distinguishes "not set" (zero value) from "explicitly
	// false".
	if !viper.IsSet("audit.enabled") {
		c.Audit.Enabled = false
	}
}
