package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnclaveConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg EnclaveConfig
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8080")
	}
	if cfg.Sandbox.SecurityLevel != "standard" {
		t.Errorf("Sandbox.SecurityLevel = %q, want %q", cfg.Sandbox.SecurityLevel, "standard")
	}
	if cfg.ToolHandler.Timeout != "30s" {
		t.Errorf("ToolHandler.Timeout = %q, want %q", cfg.ToolHandler.Timeout, "30s")
	}
	if cfg.Telemetry.ServiceName != "enclave-guardd" {
		t.Errorf("Telemetry.ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "enclave-guardd")
	}
}

func TestEnclaveConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := EnclaveConfig{
		Server: ServerConfig{HTTPAddr: ":9090"},
		Sandbox: SandboxConfig{
			SecurityLevel: "strict",
		},
		ToolHandler: ToolHandlerConfig{Timeout: "5s"},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr was overwritten: got %q, want %q", cfg.Server.HTTPAddr, ":9090")
	}
	if cfg.Sandbox.SecurityLevel != "strict" {
		t.Errorf("SecurityLevel was overwritten: got %q, want %q", cfg.Sandbox.SecurityLevel, "strict")
	}
	if cfg.ToolHandler.Timeout != "5s" {
		t.Errorf("ToolHandler.Timeout was overwritten: got %q, want %q", cfg.ToolHandler.Timeout, "5s")
	}
}

func TestEnclaveConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := EnclaveConfig{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.Sandbox.SecurityLevel != "permissive" {
		t.Errorf("dev-mode SecurityLevel = %q, want %q", cfg.Sandbox.SecurityLevel, "permissive")
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("dev-mode Exporter = %q, want %q", cfg.Telemetry.Exporter, "stdout")
	}
}

func TestEnclaveConfig_SetDevDefaults_NoopWhenNotDevMode(t *testing.T) {
	t.Parallel()

	cfg := EnclaveConfig{}
	cfg.SetDevDefaults()

	if cfg.Sandbox.SecurityLevel != "" {
		t.Errorf("expected SecurityLevel untouched outside dev mode, got %q", cfg.Sandbox.SecurityLevel)
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "enclave-guardd.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "enclave-guardd.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "enclave-guardd" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "enclave-guardd"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "enclave-guardd.yaml")
	ymlPath := filepath.Join(dir, "enclave-guardd.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  http_addr: :8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
