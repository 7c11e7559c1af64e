// Package config provides configuration loading for enclave-guardd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for enclave-guardd.yaml/
// .yml in standard locations. The search requires an explicit YAML
// extension to avoid matching the binary itself, which Viper's built-in
// SetConfigName would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("enclave-guardd")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: ENCLAVE_GUARDD_SANDBOX_SECURITY_LEVEL
	viper.SetEnvPrefix("ENCLAVE_GUARDD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an enclave-guardd config
// file with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".enclave-guardd"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "enclave-guardd"))
		}
	} else {
		paths = append(paths, "/etc/enclave-guardd")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "enclave-guardd"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the config keys callers most often want to
// override via environment variables rather than a file.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.enabled")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("sandbox.security_level")
	_ = viper.BindEnv("sandbox.timeout_ms")
	_ = viper.BindEnv("sandbox.max_iterations")
	_ = viper.BindEnv("sandbox.max_tool_calls")

	_ = viper.BindEnv("tool_handler.http")
	_ = viper.BindEnv("tool_handler.command")
	_ = viper.BindEnv("tool_handler.timeout")

	_ = viper.BindEnv("audit.enabled")
	_ = viper.BindEnv("audit.path")

	_ = viper.BindEnv("telemetry.enabled")
	_ = viper.BindEnv("telemetry.exporter")
	_ = viper.BindEnv("telemetry.otlp_endpoint")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, applies dev defaults, validates, and returns the
// EnclaveConfig. Callers that apply CLI flag overrides (e.g. --dev) before
// SetDevDefaults()/Validate() use LoadConfigRaw instead.
func LoadConfig() (*EnclaveConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg EnclaveConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but
// does NOT apply dev defaults or validate. Use this when CLI flags may
// override DevMode before validation.
func LoadConfigRaw() (*EnclaveConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg EnclaveConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded. Returns an empty string if no config file was found (env vars
// only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
