package policy

import "time"

// baseAllowedGlobals is the set of bare free identifiers every preset
// permits regardless of level; UNKNOWN_GLOBAL rejects anything else not in
// this list, the embedder's custom_globals, or their "__safe_" twins.
var baseAllowedGlobals = []string{
	"Math", "JSON", "Array", "Object", "String", "Number", "Date", "console",
	"callTool", "parallel",
	"undefined", "NaN", "Infinity",
	"__safe_callTool", "__safe_forOf", "__safe_for", "__safe_while", "__safe_doWhile",
	"__safe_concat", "__safe_template", "__safe_console", "__safe_parallel",
}

// StrictPreset is the tightest configuration: short deadlines, low
// ceilings, no child tasks, full stack sanitization, the narrowest proxy
// depth, and no function values in custom globals.
var StrictPreset = Preset{
	Level:                      SecurityLevelStrict,
	Timeout:                    2 * time.Second,
	MaxIterations:              1_000,
	MaxToolCalls:               10,
	MaxConcurrentChildTasks:    0,
	MemoryCeilingBytes:         10 * 1024 * 1024,
	MaxConsoleCalls:            100,
	MaxConsoleOutputBytes:      64 * 1024,
	SanitizeStackTraces:        true,
	Proxy:                      ProxyConfig{BlockConstructor: true, BlockProto: true, BlockLegacyAccessors: true, MaxDepth: 5},
	AllowFunctionsInGlobals:    false,
	MaxSanitizeDepth:           20,
	MaxSanitizeProperties:      1_000,
	AllowRegex:                 false,
	AllowFunctionDecls:         false,
	ResourceExhaustionCeiling:  10_000,
	ResourceExhaustionWarnOnly: false,
	MaxInputSize:               256 * 1024,
	AllowedGlobals:             baseAllowedGlobals,
}

// SecurePreset loosens StrictPreset's wall-clock and ceilings moderately.
var SecurePreset = Preset{
	Level:                      SecurityLevelSecure,
	Timeout:                    10 * time.Second,
	MaxIterations:              50_000,
	MaxToolCalls:               100,
	MaxConcurrentChildTasks:    4,
	MemoryCeilingBytes:         10 * 1024 * 1024,
	MaxConsoleCalls:            1_000,
	MaxConsoleOutputBytes:      256 * 1024,
	SanitizeStackTraces:        true,
	Proxy:                      ProxyConfig{BlockConstructor: true, BlockProto: true, BlockLegacyAccessors: true, MaxDepth: 8},
	AllowFunctionsInGlobals:    false,
	MaxSanitizeDepth:           20,
	MaxSanitizeProperties:      5_000,
	AllowRegex:                 false,
	AllowFunctionDecls:         false,
	ResourceExhaustionCeiling:  100_000,
	ResourceExhaustionWarnOnly: false,
	MaxInputSize:               512 * 1024,
	AllowedGlobals:             baseAllowedGlobals,
}

// StandardPreset is the default used by Scenario A of the governing
// specification: moderate deadline, high ceilings, stack sanitization off.
var StandardPreset = Preset{
	Level:                      SecurityLevelStandard,
	Timeout:                    30 * time.Second,
	MaxIterations:              1_000_000,
	MaxToolCalls:               1_000,
	MaxConcurrentChildTasks:    16,
	MemoryCeilingBytes:         128 * 1024 * 1024,
	MaxConsoleCalls:            10_000,
	MaxConsoleOutputBytes:      1024 * 1024,
	SanitizeStackTraces:        false,
	Proxy:                      ProxyConfig{BlockConstructor: true, BlockProto: true, BlockLegacyAccessors: true, MaxDepth: 10},
	AllowFunctionsInGlobals:    false,
	MaxSanitizeDepth:           20,
	MaxSanitizeProperties:      20_000,
	AllowRegex:                 false,
	AllowFunctionDecls:         false,
	ResourceExhaustionCeiling:  1_000_000,
	ResourceExhaustionWarnOnly: false,
	MaxInputSize:               1024 * 1024,
	AllowedGlobals:             baseAllowedGlobals,
}

// PermissivePreset is the loosest configuration. It still retains AST
// validation and secure-proxy wrapping (the one invariant every level
// upholds) but allows function values in custom globals and downgrades
// non-constant resource-exhaustion patterns to warnings.
var PermissivePreset = Preset{
	Level:                      SecurityLevelPermissive,
	Timeout:                    2 * time.Minute,
	MaxIterations:              50_000_000,
	MaxToolCalls:               10_000,
	MaxConcurrentChildTasks:    64,
	MemoryCeilingBytes:         512 * 1024 * 1024,
	MaxConsoleCalls:            100_000,
	MaxConsoleOutputBytes:      10 * 1024 * 1024,
	SanitizeStackTraces:        false,
	Proxy:                      ProxyConfig{BlockConstructor: false, BlockProto: true, BlockLegacyAccessors: true, MaxDepth: 16},
	AllowFunctionsInGlobals:    true,
	MaxSanitizeDepth:           32,
	MaxSanitizeProperties:      100_000,
	AllowRegex:                 false,
	AllowFunctionDecls:         false,
	ResourceExhaustionCeiling:  10_000_000,
	ResourceExhaustionWarnOnly: true,
	MaxInputSize:               4 * 1024 * 1024,
	AllowedGlobals:             baseAllowedGlobals,
}

// AllowedGlobalsWithCustom returns p's allowed-globals set extended with
// each custom global name and its "__safe_" twin, per §4.2's "For each
// user-declared or user-provided global name X, the preset's
// allowed-globals set must also contain __safe_X".
func (p Preset) AllowedGlobalsWithCustom(customGlobals []string) map[string]bool {
	set := make(map[string]bool, len(p.AllowedGlobals)+2*len(customGlobals))
	for _, name := range p.AllowedGlobals {
		set[name] = true
	}
	for _, name := range customGlobals {
		set[name] = true
		set["__safe_"+name] = true
	}
	return set
}
