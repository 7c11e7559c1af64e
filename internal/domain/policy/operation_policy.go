package policy

// NameMatcher evaluates a single string against a compiled predicate. The
// CEL-backed adapter in internal/adapter/outbound/cel implements this
// interface; it is declared here, in the domain, so that
// internal/domain/validation and internal/adapter/outbound/v8sandbox never
// import the CEL package directly (hexagonal split: domain owns the port,
// the adapter owns the implementation).
type NameMatcher interface {
	// Match reports whether name satisfies the compiled predicate.
	Match(name string) (bool, error)
}

// OperationPolicy holds the optional operation-name allow/block patterns
// consulted by __safe_callTool before a tool call proceeds (§4.3.3,
// glossary "Operation name"). A nil Allow means "allow all names not
// blocked"; a non-nil Block always wins over a matching Allow.
type OperationPolicy struct {
	Allow NameMatcher
	Block NameMatcher
}

// Evaluate applies block-before-allow precedence: a Block match rejects
// regardless of Allow; otherwise an empty/nil Allow permits everything.
func (p OperationPolicy) Evaluate(name string) (allowed bool, reason string, err error) {
	if p.Block != nil {
		blocked, err := p.Block.Match(name)
		if err != nil {
			return false, "", err
		}
		if blocked {
			return false, "operation name matches block pattern", nil
		}
	}
	if p.Allow == nil {
		return true, "", nil
	}
	ok, err := p.Allow.Match(name)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, "operation name does not match allow pattern", nil
	}
	return true, "", nil
}
