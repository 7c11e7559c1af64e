package validation

import (
	"github.com/dop251/goja/ast"

	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
)

// Rule is a tagged variant, not a class: a stable Code plus a stateless
// visit function over one AST node. Presets compose an ordered list of
// Rules; nothing here carries per-run state (the design note "do not
// introduce class hierarchies" rules out a Rule interface hierarchy).
type Rule struct {
	Code string
	// Visit is invoked once per node during the walk. It appends any
	// issues it finds to ctx.Issues; it must never panic on well-formed
	// AST input and must never stop the walk itself.
	Visit func(ctx *RuleContext, node ast.Node)
}

// RuleContext is the per-validation-run bag threaded through every rule's
// Visit call: the effective preset, the custom-globals allow set, and the
// accumulated issue list.
type RuleContext struct {
	Preset        policy.Preset
	AllowedGlobals map[string]bool
	Issues        []Issue

	// declaredNames tracks identifiers bound by declarations (function
	// parameters, variable bindings, arrow-function parameters) so
	// UNKNOWN_GLOBAL does not flag legitimately-bound local names.
	declaredNames map[string]bool
}

func newRuleContext(preset policy.Preset, customGlobals []string) *RuleContext {
	return &RuleContext{
		Preset:         preset,
		AllowedGlobals: preset.AllowedGlobalsWithCustom(customGlobals),
		declaredNames:  map[string]bool{},
	}
}

func (c *RuleContext) reportError(code, message string, node ast.Node) {
	c.Issues = append(c.Issues, Issue{Code: code, Message: message, Severity: SeverityError, Location: locationOf(node)})
}

func (c *RuleContext) reportWarning(code, message string, node ast.Node) {
	c.Issues = append(c.Issues, Issue{Code: code, Message: message, Severity: SeverityWarning, Location: locationOf(node)})
}

func locationOf(node ast.Node) *Location {
	if node == nil {
		return nil
	}
	start := int(node.Idx0())
	end := int(node.Idx1())
	return &Location{Start: start, End: end}
}

// DefaultRules returns the AgentScript preset's rule list in the fixed
// order from §4.1's table. Rule order is part of the contract: issues are
// collected in this order within a single node visit, and across nodes in
// walk (visit) order.
func DefaultRules() []Rule {
	return []Rule{
		{Code: CodeDisallowedIdentifier, Visit: visitDisallowedIdentifier},
		{Code: CodeUnknownGlobal, Visit: visitUnknownGlobal},
		{Code: CodeNoMetaProgramming, Visit: visitNoMetaProgramming},
		{Code: CodeNoComputedConstructor, Visit: visitNoComputedConstructor},
		{Code: CodeNoComputedDestructuring, Visit: visitNoComputedDestructuring},
		{Code: CodeNoFunctionDecl, Visit: visitNoFunctionDecl},
		{Code: CodeNoRegexLiteral, Visit: visitNoRegexLiteral},
		{Code: CodeJSONCallbackNotAllowed, Visit: visitJSONCallbackNotAllowed},
		{Code: CodeResourceExhaustion, Visit: visitResourceExhaustion},
		{Code: CodeInfiniteLoop, Visit: visitInfiniteLoop},
		{Code: CodeNoGlobalAccess, Visit: visitNoGlobalAccess},
		{Code: CodeSecurityViolation, Visit: visitSecurityViolation},
	}
}
