package validation

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
)

// visitNoFunctionDecl flags named function declarations and function
// expressions; arrow functions are always permitted.
func visitNoFunctionDecl(ctx *RuleContext, node ast.Node) {
	switch node.(type) {
	case *ast.FunctionDeclaration:
		if !ctx.Preset.AllowFunctionDecls {
			ctx.reportError(CodeNoFunctionDecl, "named function declarations are not allowed", node)
		}
	case *ast.FunctionLiteral:
		if !ctx.Preset.AllowFunctionDecls {
			ctx.reportError(CodeNoFunctionDecl, "function expressions are not allowed", node)
		}
	}
}

// visitNoRegexLiteral flags any regex literal.
func visitNoRegexLiteral(ctx *RuleContext, node ast.Node) {
	if _, ok := node.(*ast.RegExpLiteral); ok && !ctx.Preset.AllowRegex {
		ctx.reportError(CodeNoRegexLiteral, "regular expression literals are not allowed", node)
	}
}

// visitJSONCallbackNotAllowed flags JSON.stringify's reviver/replacer
// argument and JSON.parse's reviver argument unless the second argument is
// literally null/undefined or (for stringify) an array literal of string
// literals.
func visitJSONCallbackNotAllowed(ctx *RuleContext, node ast.Node) {
	call, ok := node.(*ast.CallExpression)
	if !ok {
		return
	}
	dot, ok := call.Callee.(*ast.DotExpression)
	if !ok {
		return
	}
	recv, ok := dot.Left.(*ast.Identifier)
	if !ok || string(recv.Name) != "JSON" {
		return
	}
	method := string(dot.Identifier.Name)

	switch method {
	case "stringify":
		if len(call.ArgumentList) < 2 {
			return
		}
		arg := call.ArgumentList[1]
		if isNullish(arg) {
			return
		}
		if arr, ok := arg.(*ast.ArrayLiteral); ok && allStringLiterals(arr.Value) {
			return
		}
		ctx.reportError(CodeJSONCallbackNotAllowed, "JSON.stringify replacer must be null/undefined or an array of string literals", node)
	case "parse":
		if len(call.ArgumentList) < 2 {
			return
		}
		if isNullish(call.ArgumentList[1]) {
			return
		}
		ctx.reportError(CodeJSONCallbackNotAllowed, "JSON.parse reviver callbacks are not allowed", node)
	}
}

func isNullish(e ast.Expression) bool {
	switch n := e.(type) {
	case *ast.NullLiteral:
		return true
	case *ast.Identifier:
		return string(n.Name) == "undefined"
	default:
		return false
	}
}

func allStringLiterals(exprs []ast.Expression) bool {
	for _, e := range exprs {
		if _, ok := e.(*ast.StringLiteral); !ok {
			return false
		}
	}
	return true
}

// visitResourceExhaustion checks the (receiver, method) shapes
// RESOURCE_EXHAUSTION inspects: Array(n).fill(...), new Array(n).fill(...),
// and "s".repeat(n).
func visitResourceExhaustion(ctx *RuleContext, node ast.Node) {
	call, ok := node.(*ast.CallExpression)
	if !ok {
		return
	}
	dot, ok := call.Callee.(*ast.DotExpression)
	if !ok {
		return
	}
	var sizeArg ast.Expression

	switch string(dot.Identifier.Name) {
	case "fill":
		sizeArg = arrayConstructorSizeArg(dot.Left)
	case "repeat":
		if _, isString := dot.Left.(*ast.StringLiteral); isString && len(call.ArgumentList) == 1 {
			sizeArg = call.ArgumentList[0]
		}
	}
	if sizeArg == nil {
		return
	}
	checkResourceCeiling(ctx, sizeArg, node)
}

func arrayConstructorSizeArg(callee ast.Expression) ast.Expression {
	switch c := callee.(type) {
	case *ast.CallExpression:
		if id, ok := c.Callee.(*ast.Identifier); ok && string(id.Name) == "Array" && len(c.ArgumentList) == 1 {
			return c.ArgumentList[0]
		}
	case *ast.NewExpression:
		if id, ok := c.Callee.(*ast.Identifier); ok && string(id.Name) == "Array" && len(c.ArgumentList) == 1 {
			return c.ArgumentList[0]
		}
	}
	return nil
}

func checkResourceCeiling(ctx *RuleContext, sizeArg ast.Expression, node ast.Node) {
	n, ok := sizeArg.(*ast.NumberLiteral)
	if !ok {
		if ctx.Preset.ResourceExhaustionWarnOnly {
			ctx.reportWarning(CodeResourceExhaustion, "size argument is not a constant; cannot verify against the resource ceiling", node)
		} else {
			ctx.reportError(CodeResourceExhaustion, "size argument is not a constant; cannot verify against the resource ceiling", node)
		}
		return
	}
	if int64(n.Value) > ctx.Preset.ResourceExhaustionCeiling {
		ctx.reportError(CodeResourceExhaustion, "size argument exceeds the resource-exhaustion ceiling", node)
	}
}

// visitInfiniteLoop flags for(;;), for(;L;), while(L), do{}while(L) where L
// is a compile-time-truthy constant.
func visitInfiniteLoop(ctx *RuleContext, node ast.Node) {
	switch n := node.(type) {
	case *ast.ForStatement:
		if n.Test == nil || isCompileTimeTruthy(n.Test) {
			ctx.reportError(CodeInfiniteLoop, "for loop has no bound: test is absent or always truthy", node)
		}
	case *ast.WhileStatement:
		if isCompileTimeTruthy(n.Test) {
			ctx.reportError(CodeInfiniteLoop, "while loop condition is always truthy", node)
		}
	case *ast.DoWhileStatement:
		if isCompileTimeTruthy(n.Test) {
			ctx.reportError(CodeInfiniteLoop, "do-while loop condition is always truthy", node)
		}
	}
}

// isCompileTimeTruthy evaluates the narrow set of constant shapes §4.1
// calls out: numeric non-zero, non-empty string, true, !false, !!true,
// Infinity, and any object/array literal (objects are always truthy).
func isCompileTimeTruthy(e ast.Expression) bool {
	switch n := e.(type) {
	case *ast.BooleanLiteral:
		return n.Value
	case *ast.NumberLiteral:
		return n.Value != 0
	case *ast.StringLiteral:
		return len(n.Value) > 0
	case *ast.Identifier:
		return string(n.Name) == "Infinity"
	case *ast.ObjectLiteral, *ast.ArrayLiteral:
		return true
	case *ast.UnaryExpression:
		if n.Operator == token.NOT {
			return isCompileTimeFalsy(n.Operand)
		}
		return false
	default:
		return false
	}
}

func isCompileTimeFalsy(e ast.Expression) bool {
	switch n := e.(type) {
	case *ast.BooleanLiteral:
		return !n.Value
	case *ast.NumberLiteral:
		return n.Value == 0
	case *ast.StringLiteral:
		return len(n.Value) == 0
	case *ast.NullLiteral:
		return true
	case *ast.Identifier:
		return string(n.Name) == "undefined" || string(n.Name) == "NaN"
	case *ast.UnaryExpression:
		if n.Operator == token.NOT {
			return isCompileTimeTruthy(n.Operand)
		}
		return false
	default:
		return false
	}
}

// visitNoGlobalAccess flags every bare `this`, including one inside a
// nested function, and any `globalThis` member access (the identifier itself is
// already rejected by DISALLOWED_IDENTIFIER; this rule catches the member
// expression shape specifically so the issue code matches the table).
func visitNoGlobalAccess(ctx *RuleContext, node ast.Node) {
	switch n := node.(type) {
	case *ast.ThisExpression:
		ctx.reportError(CodeNoGlobalAccess, "\"this\" is not accessible at the entry function's top level", node)
	case *ast.DotExpression:
		if id, ok := n.Left.(*ast.Identifier); ok && string(id.Name) == "globalThis" {
			ctx.reportError(CodeNoGlobalAccess, "globalThis member access is not allowed", node)
		}
	}
}

// visitSecurityViolation flags with-statements, dynamic import(...), and
// every tagged template. Labeled break and continue statements are not
// inspected.
func visitSecurityViolation(ctx *RuleContext, node ast.Node) {
	switch n := node.(type) {
	case *ast.WithStatement:
		ctx.reportError(CodeSecurityViolation, "\"with\" statements are not allowed", node)
	case *ast.CallExpression:
		if id, ok := n.Callee.(*ast.Identifier); ok && string(id.Name) == "import" {
			ctx.reportError(CodeSecurityViolation, "dynamic import() is not allowed", node)
		}
	case *ast.TemplateLiteral:
		if n.Tag != nil {
			ctx.reportError(CodeSecurityViolation, "tagged template literals are not allowed", node)
		}
	}
}
