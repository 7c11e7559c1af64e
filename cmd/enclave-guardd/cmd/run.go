package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentscript/sentinel-enclave/internal/config"
	"github.com/agentscript/sentinel-enclave/internal/ctxkey"
	"github.com/agentscript/sentinel-enclave/internal/domain/runtime"
	"github.com/agentscript/sentinel-enclave/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run [script.js]",
	Short: "Run a script inside the sandbox",
	Long: `Run validates, transforms, and executes the given script inside the
V8 sandbox, mediating every tool call through the configured operation
policy and tool handler.

With no file argument, the script is read from stdin.

Examples:
  enclave-guardd run script.js
  cat script.js | enclave-guardd run
  enclave-guardd run --timeout 10s script.js`,
	RunE: runScript,
	Args: cobra.MaximumNArgs(1),
}

var (
	runTimeout    time.Duration
	runOutputJSON bool
)

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "override the execution timeout (0 uses the configured preset)")
	runCmd.Flags().BoolVar(&runOutputJSON, "json", false, "print the result as JSON instead of a human-readable summary")
	rootCmd.AddCommand(runCmd)
}

// runScript is the entry point; it calls runScriptInternal (where defers
// run before return) and propagates the exit code via os.Exit.
func runScript(cmd *cobra.Command, args []string) error {
	exitCode, err := runScriptInternal(args)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func runScriptInternal(args []string) (exitCode int, retErr error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	source, err := readSource(args)
	if err != nil {
		return 0, fmt.Errorf("read source: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, logger)

	enclave, closer, err := service.FromConfig(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("build enclave: %w", err)
	}
	if closer != nil {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("error releasing enclave resources", "error", err)
			}
		}()
	}

	req := service.RunRequest{Source: source}
	if runTimeout > 0 {
		req.Override.TimeoutMs = runTimeout.Milliseconds()
	}

	result := enclave.Run(ctx, req)

	if runOutputJSON {
		if err := printResultJSON(os.Stdout, result); err != nil {
			return 0, fmt.Errorf("encode result: %w", err)
		}
	} else {
		printResultText(os.Stdout, result)
	}

	if !result.Success {
		return 1, nil
	}
	return 0, nil
}

func readSource(args []string) (string, error) {
	if len(args) == 1 {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func printResultText(w io.Writer, result runtime.Result) {
	if result.Success {
		fmt.Fprintf(w, "ok: %v\n", result.Value)
	} else {
		fmt.Fprintf(w, "error [%s]: %s\n", result.Err.Code, result.Err.Message)
	}
	fmt.Fprintf(w, "  duration: %dms  iterations: %d  tool calls: %d\n",
		result.Stats.DurationMS, result.Stats.IterationCount, result.Stats.ToolCallCount)
}

func printResultJSON(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
