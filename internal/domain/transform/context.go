// Package transform implements the AST transformer: it walks a validated
// program and rewrites permitted constructs into the bounded instrumented
// forms the safe runtime helpers expect, per §4.2 of the governing
// specification.
package transform

// Context is the per-run option bag from §4.2's "Public contract", plus
// the threshold and sidecar needed by extract_large_strings.
type Context struct {
	WrapInMain          bool
	TransformCallTool   bool
	TransformLoops      bool
	TransformConcat     bool
	TransformTemplates  bool
	ExtractLargeStrings bool

	// LargeStringThreshold is the byte length above which a string
	// literal is extracted to the sidecar (only consulted when
	// ExtractLargeStrings is true).
	LargeStringThreshold int

	// Sidecar receives extracted literals when ExtractLargeStrings is on.
	// May be nil when ExtractLargeStrings is false.
	Sidecar *Sidecar
}

// DefaultContext returns the §4.2 defaults: entry wrapping, tool-call
// rewriting, and loop rewriting on; concatenation/template rewriting and
// large-string extraction off (all three are documented as optional).
func DefaultContext() Context {
	return Context{
		WrapInMain:           true,
		TransformCallTool:    true,
		TransformLoops:       true,
		TransformConcat:      false,
		TransformTemplates:   false,
		ExtractLargeStrings:  false,
		LargeStringThreshold: 2048,
	}
}
