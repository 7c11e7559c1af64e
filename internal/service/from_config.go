package service

import (
	"context"
	"fmt"
	"time"

	"github.com/agentscript/sentinel-enclave/internal/adapter/outbound/auditstore"
	"github.com/agentscript/sentinel-enclave/internal/adapter/outbound/cel"
	"github.com/agentscript/sentinel-enclave/internal/adapter/outbound/toolbridge"
	"github.com/agentscript/sentinel-enclave/internal/config"
	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
)

// Closer releases every resource FromConfig opened (the audit store's
// database handle, the tool bridge's subprocess/HTTP transport).
type Closer interface {
	Close() error
}

type multiCloser []Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FromConfig builds an Enclave wired exactly as cfg describes: the
// security level and custom globals from cfg.Sandbox, a toolbridge.Bridge
// started against cfg.ToolHandler (command or HTTP, mutually exclusive
// per config.Validate), an operation policy compiled by cel.NewMatcher
// from cfg.OperationPolicy, and an auditstore.Store opened at
// cfg.Audit.Path when cfg.Audit.Enabled. The caller must Close() the
// returned Closer once done with the Enclave.
func FromConfig(ctx context.Context, cfg *config.EnclaveConfig) (*Enclave, Closer, error) {
	var closers multiCloser

	opts := []Option{
		WithCustomGlobalNames(cfg.Sandbox.CustomGlobals),
		WithBaseOverride(sandboxOverride(cfg.Sandbox)),
	}

	if cfg.ToolHandler.HTTP != "" || cfg.ToolHandler.Command != "" {
		timeout, err := parseToolTimeout(cfg.ToolHandler.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("tool_handler.timeout: %w", err)
		}

		var bridge *toolbridge.Bridge
		if cfg.ToolHandler.HTTP != "" {
			bridge = toolbridge.NewHTTPBridge(cfg.ToolHandler.HTTP, timeout)
		} else {
			bridge = toolbridge.NewCommandBridge(cfg.ToolHandler.Command, cfg.ToolHandler.Args)
		}
		if err := bridge.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("start tool bridge: %w", err)
		}
		closers = append(closers, bridge)
		opts = append(opts, WithToolHandler(bridge))
	}

	if len(cfg.OperationPolicy.Allow) > 0 || len(cfg.OperationPolicy.Block) > 0 {
		var opPolicy policy.OperationPolicy
		if len(cfg.OperationPolicy.Allow) > 0 {
			m, err := cel.NewMatcher(cfg.OperationPolicy.Allow)
			if err != nil {
				return nil, closeAll(closers), fmt.Errorf("operation_policy.allow: %w", err)
			}
			opPolicy.Allow = m
		}
		if len(cfg.OperationPolicy.Block) > 0 {
			m, err := cel.NewMatcher(cfg.OperationPolicy.Block)
			if err != nil {
				return nil, closeAll(closers), fmt.Errorf("operation_policy.block: %w", err)
			}
			opPolicy.Block = m
		}
		opts = append(opts, WithOperationPolicy(opPolicy))
	}

	if cfg.Audit.Enabled {
		store, err := auditstore.Open(cfg.Audit.Path)
		if err != nil {
			return nil, closeAll(closers), fmt.Errorf("open audit store: %w", err)
		}
		closers = append(closers, store)
		opts = append(opts, WithAuditStore(store))
	}

	level := policy.SecurityLevel(cfg.Sandbox.SecurityLevel)
	enclave := New(level, opts...)
	return enclave, closeAll(closers), nil
}

func closeAll(closers multiCloser) Closer {
	if len(closers) == 0 {
		return nil
	}
	return closers
}

func parseToolTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// sandboxOverride translates config.SandboxConfig's flat override fields
// into a policy.Override, leaving fields the config left at zero to fall
// through to the selected security level's own preset values (Merge only
// substitutes non-zero fields).
func sandboxOverride(cfg config.SandboxConfig) policy.Override {
	return policy.Override{
		TimeoutMs:             int64(cfg.TimeoutMS),
		MaxIterations:         cfg.MaxIterations,
		MaxToolCalls:          cfg.MaxToolCalls,
		MemoryCeilingBytes:    cfg.MemoryCeilingBytes,
		MaxConsoleCalls:       cfg.MaxConsoleCalls,
		MaxConsoleOutputBytes: cfg.MaxConsoleOutputBytes,
	}
}
