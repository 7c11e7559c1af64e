package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentscript/sentinel-enclave/internal/config"
	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
	"github.com/agentscript/sentinel-enclave/internal/domain/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate [script.js]",
	Short: "Validate a script without executing it",
	Long: `Validate parses the given script and runs the configured rule set
against it, reporting every issue found. It never transforms or executes
the script.

With no file argument, the script is read from stdin.

Examples:
  enclave-guardd validate script.js
  cat script.js | enclave-guardd validate`,
	RunE: validateScript,
	Args: cobra.MaximumNArgs(1),
}

var validateOutputJSON bool

func init() {
	validateCmd.Flags().BoolVar(&validateOutputJSON, "json", false, "print the result as JSON instead of a human-readable summary")
	rootCmd.AddCommand(validateCmd)
}

func validateScript(cmd *cobra.Command, args []string) error {
	source, err := readSource(args)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := policy.SecurityLevel(cfg.Sandbox.SecurityLevel)
	preset := policy.ForLevel(level)

	validator := validation.New(validation.DefaultRules())
	result := validator.Validate(source, validation.Options{
		Preset:        preset,
		CustomGlobals: cfg.Sandbox.CustomGlobals,
	})

	if validateOutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		printValidationResult(os.Stdout, result)
	}

	if !result.Valid {
		os.Exit(1)
	}
	return nil
}

func printValidationResult(w io.Writer, result validation.Result) {
	if result.ParseError != "" {
		fmt.Fprintf(w, "parse error: %s\n", result.ParseError)
		return
	}
	if result.Valid {
		fmt.Fprintln(w, "valid")
	} else {
		fmt.Fprintln(w, "invalid")
	}
	for _, issue := range result.Issues {
		loc := ""
		if issue.Location != nil {
			loc = fmt.Sprintf(" (line %d, col %d)", issue.Location.Line, issue.Location.Column)
		}
		fmt.Fprintf(w, "  [%s] %s: %s%s\n", issue.Severity, issue.Code, issue.Message, loc)
	}
}
