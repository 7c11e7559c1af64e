package validation

import "github.com/dop251/goja/ast"

// denylistedIdentifiers is the DISALLOWED_IDENTIFIER table from §4.1:
// every bare reference to one of these names is rejected outright,
// regardless of whether it would also resolve under UNKNOWN_GLOBAL.
var denylistedIdentifiers = map[string]bool{
	"constructor": true, "prototype": true, "__proto__": true,
	"eval": true, "Function": true, "AsyncFunction": true, "Generator": true,
	"Proxy": true, "Reflect": true, "Symbol": true, "WeakRef": true,
	"FinalizationRegistry": true, "globalThis": true, "window": true,
	"self": true, "global": true, "process": true, "require": true,
	"module": true, "exports": true, "import": true, "performance": true,
	"SharedArrayBuffer": true, "Atomics": true, "Worker": true,
	"queueMicrotask": true, "setTimeout": true, "setInterval": true,
	"setImmediate": true, "Map": true, "Set": true, "WeakMap": true,
	"WeakSet": true, "Promise": true,
}

// visitDisallowedIdentifier flags any bare Identifier reference whose name
// is on the deny list. async/await never surface as an Identifier node
// referencing "Promise", so permitting async/await while rejecting the
// bare name falls out of the grammar for free (§14 open-question
// resolution: Promise.resolve/reject are not special-cased safe helpers).
func visitDisallowedIdentifier(ctx *RuleContext, node ast.Node) {
	id, ok := node.(*ast.Identifier)
	if !ok {
		return
	}
	name := string(id.Name)
	if denylistedIdentifiers[name] {
		ctx.reportError(CodeDisallowedIdentifier, "identifier \""+name+"\" is on the deny list", node)
	}
}

// visitUnknownGlobal flags a free identifier reference that is neither
// declared locally, nor in the preset's allowed-globals set (extended with
// custom globals and their __safe_ twins). DISALLOWED_IDENTIFIER already
// covers the hazard names above, so this rule concerns itself only with
// names that aren't independently blacklisted, to avoid double-reporting
// the same reference under two codes.
func visitUnknownGlobal(ctx *RuleContext, node ast.Node) {
	switch n := node.(type) {
	case *ast.VariableStatement:
		for _, b := range n.List {
			if id, ok := b.Target.(*ast.Identifier); ok {
				ctx.declaredNames[string(id.Name)] = true
			}
		}
		return
	case *ast.FunctionLiteral:
		for _, p := range functionParamNames(n) {
			ctx.declaredNames[p] = true
		}
		return
	case *ast.ArrowFunctionLiteral:
		for _, p := range arrowParamNames(n) {
			ctx.declaredNames[p] = true
		}
		return
	}

	id, ok := node.(*ast.Identifier)
	if !ok {
		return
	}
	name := string(id.Name)
	if denylistedIdentifiers[name] {
		return // already reported by DISALLOWED_IDENTIFIER
	}
	if ctx.declaredNames[name] {
		return
	}
	if !ctx.AllowedGlobals[name] {
		ctx.reportError(CodeUnknownGlobal, "reference to unknown global \""+name+"\"", node)
	}
}

func functionParamNames(fn *ast.FunctionLiteral) []string {
	if fn == nil || fn.ParameterList == nil {
		return nil
	}
	var names []string
	for _, b := range fn.ParameterList.List {
		if id, ok := b.Target.(*ast.Identifier); ok {
			names = append(names, string(id.Name))
		}
	}
	return names
}

func arrowParamNames(fn *ast.ArrowFunctionLiteral) []string {
	if fn == nil || fn.ParameterList == nil {
		return nil
	}
	var names []string
	for _, b := range fn.ParameterList.List {
		if id, ok := b.Target.(*ast.Identifier); ok {
			names = append(names, string(id.Name))
		}
	}
	return names
}
