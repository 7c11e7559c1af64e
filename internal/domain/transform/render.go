package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dop251/goja/ast"
)

// renderer re-emits a validated program as source text, applying the
// enabled §4.2 rewrites as it goes. It never slices the original source:
// regenerating every node keeps the bottom-up composition of a rewritten
// inner construct (a wrapped loop, a redirected call) into its untouched
// outer context trivial, at the cost of not preserving incidental
// formatting — acceptable, since §4.2 only promises preserved *behavior*.
type renderer struct {
	ctx Context

	// loopDepth tracks how many enclosing __safe_* loop bodies the
	// current statement is being rendered inside of; break/continue
	// sentinel substitution only applies at depth 1 relative to the
	// loop whose body is currently being built (see renderLoopBody).
	loopDepth int
}

func (r *renderer) renderProgramBody(program *ast.Program) string {
	var sb strings.Builder
	for _, s := range program.Body {
		sb.WriteString(r.renderStatement(s))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *renderer) renderStatements(list []ast.Statement) string {
	var sb strings.Builder
	for _, s := range list {
		sb.WriteString(r.renderStatement(s))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *renderer) renderStatement(stmt ast.Statement) string {
	switch n := stmt.(type) {
	case nil:
		return ""
	case *ast.ExpressionStatement:
		return r.renderExpr(n.Expression) + ";"
	case *ast.BlockStatement:
		return "{\n" + r.renderStatements(n.List) + "}"
	case *ast.IfStatement:
		out := "if (" + r.renderExpr(n.Test) + ") " + r.renderStatement(n.Consequent)
		if n.Alternate != nil {
			out += " else " + r.renderStatement(n.Alternate)
		}
		return out
	case *ast.ForStatement:
		return r.renderFor(n)
	case *ast.ForOfStatement:
		return r.renderForOf(n)
	case *ast.ForInStatement:
		return r.renderForIn(n)
	case *ast.WhileStatement:
		return r.renderWhile(n)
	case *ast.DoWhileStatement:
		return r.renderDoWhile(n)
	case *ast.ReturnStatement:
		if n.Argument == nil {
			return "return;"
		}
		return "return " + r.renderExpr(n.Argument) + ";"
	case *ast.ThrowStatement:
		return "throw " + r.renderExpr(n.Argument) + ";"
	case *ast.TryStatement:
		return r.renderTry(n)
	case *ast.SwitchStatement:
		return r.renderSwitch(n)
	case *ast.LabelledStatement:
		return labelName(n) + ": " + r.renderStatement(n.Statement)
	case *ast.WithStatement:
		return "with (" + r.renderExpr(n.Object) + ") " + r.renderStatement(n.Body)
	case *ast.VariableStatement:
		return r.renderVariableStatement(n)
	case *ast.FunctionDeclaration:
		return r.renderFunction(n.Function, true)
	case *ast.BranchStatement:
		return r.renderBranch(n)
	case *ast.EmptyStatement:
		return ";"
	case *ast.DebuggerStatement:
		return "debugger;"
	default:
		return ""
	}
}

// renderBranch renders a bare break/continue, substituting the sentinel
// return the enclosing __safe_* loop helper expects whenever this
// statement is inside a loop body this renderer is itself wrapping
// (loopDepth > 0). A labeled branch or one outside any wrapped loop is
// left as a literal break/continue. The validator does not inspect
// labeled branches, so one whose label lies outside the wrapped loop body
// is emitted unchanged and the rendered script fails to compile.
func (r *renderer) renderBranch(n *ast.BranchStatement) string {
	keyword := "break"
	if n.Token.String() == "continue" {
		keyword = "continue"
	}
	if n.Label != nil {
		return keyword + " " + string(n.Label.Name) + ";"
	}
	if r.loopDepth > 0 {
		if keyword == "break" {
			return "return __ag_break;"
		}
		return "return __ag_continue;"
	}
	return keyword + ";"
}

func labelName(n *ast.LabelledStatement) string {
	if n.Label == nil {
		return ""
	}
	return string(n.Label.Name)
}

func (r *renderer) renderTry(n *ast.TryStatement) string {
	out := "try " + r.renderStatement(n.Body)
	if n.Catch != nil {
		out += " catch "
		if n.Catch.Parameter != nil {
			out += "(" + r.renderBindingTarget(n.Catch.Parameter) + ") "
		}
		out += r.renderStatement(n.Catch.Body)
	}
	if n.Finally != nil {
		out += " finally " + r.renderStatement(n.Finally)
	}
	return out
}

func (r *renderer) renderSwitch(n *ast.SwitchStatement) string {
	var sb strings.Builder
	sb.WriteString("switch (" + r.renderExpr(n.Discriminant) + ") {\n")
	for _, c := range n.Body {
		if c.Test != nil {
			sb.WriteString("case " + r.renderExpr(c.Test) + ":\n")
		} else {
			sb.WriteString("default:\n")
		}
		sb.WriteString(r.renderStatements(c.Consequent))
	}
	sb.WriteString("}")
	return sb.String()
}

func (r *renderer) renderVariableStatement(n *ast.VariableStatement) string {
	keyword := n.Token.String()
	if keyword == "" {
		keyword = "let"
	}
	parts := make([]string, 0, len(n.List))
	for _, b := range n.List {
		target := r.renderBindingTarget(b.Target)
		if b.Initializer != nil {
			target += " = " + r.renderExpr(b.Initializer)
		}
		parts = append(parts, target)
	}
	return keyword + " " + strings.Join(parts, ", ") + ";"
}

func (r *renderer) renderBindingTarget(t ast.BindingTarget) string {
	if id, ok := t.(*ast.Identifier); ok {
		return string(id.Name)
	}
	return "_"
}

// renderFor applies transform_loops: `for (init; test; update) body`
// becomes `await __safe_for(() => { init }, () => (test), () => { update
// }, () => { body })`. init is hoisted as a plain declaration ahead of the
// call only when it declares a loop-scoped binding the test/update/body
// need to see across iterations — the schematic four-thunk form from §4.2
// otherwise captures it correctly via closure, since each thunk shares the
// same lexical scope as the original loop.
func (r *renderer) renderFor(n *ast.ForStatement) string {
	if !r.ctx.TransformLoops {
		return r.renderForVerbatim(n)
	}
	init := "() => {}"
	hoisted := ""
	if n.Initializer != nil {
		if _, ok := n.Initializer.(*ast.ForLoopInitializerVarDeclList); ok {
			hoisted = r.renderForInitializer(n.Initializer) + "; "
		} else {
			init = "() => { " + r.renderForInitializer(n.Initializer) + " }"
		}
	}
	test := "() => (true)"
	if n.Test != nil {
		test = "() => (" + r.renderExpr(n.Test) + ")"
	}
	update := "() => {}"
	if n.Update != nil {
		update = "() => { " + r.renderExpr(n.Update) + "; }"
	}
	body := r.renderLoopBody(n.Body)
	if hoisted != "" {
		return fmt.Sprintf("{ %sawait __safe_for(%s, %s, %s, %s); }", hoisted, init, test, update, body)
	}
	return fmt.Sprintf("await __safe_for(%s, %s, %s, %s);", init, test, update, body)
}

func (r *renderer) renderForVerbatim(n *ast.ForStatement) string {
	init := ""
	if n.Initializer != nil {
		init = r.renderForInitializer(n.Initializer)
	}
	test := ""
	if n.Test != nil {
		test = r.renderExpr(n.Test)
	}
	update := ""
	if n.Update != nil {
		update = r.renderExpr(n.Update)
	}
	return "for (" + init + "; " + test + "; " + update + ") " + r.renderStatement(n.Body)
}

func (r *renderer) renderForInitializer(init ast.ForLoopInitializer) string {
	switch i := init.(type) {
	case *ast.ForLoopInitializerExpression:
		return r.renderExpr(i.Expression)
	case *ast.ForLoopInitializerVarDeclList:
		parts := make([]string, 0, len(i.List))
		for _, b := range i.List {
			target := r.renderBindingTarget(b.Target)
			if b.Initializer != nil {
				target += " = " + r.renderExpr(b.Initializer)
			}
			parts = append(parts, target)
		}
		return i.Token.String() + " " + strings.Join(parts, ", ")
	default:
		return ""
	}
}

// renderForOf applies transform_loops: `for (const x of it) body` becomes
// `await __safe_forOf(it, (x) => { body })`.
func (r *renderer) renderForOf(n *ast.ForOfStatement) string {
	if !r.ctx.TransformLoops {
		return "for (" + r.renderForInto(n.Into) + " of " + r.renderExpr(n.Source) + ") " + r.renderStatement(n.Body)
	}
	param := r.renderForIntoParam(n.Into)
	body := r.renderLoopBody(n.Body)
	return fmt.Sprintf("await __safe_forOf(%s, (%s) => %s);", r.renderExpr(n.Source), param, body)
}

func (r *renderer) renderForIn(n *ast.ForInStatement) string {
	if !r.ctx.TransformLoops {
		return "for (" + r.renderForInto(n.Into) + " in " + r.renderExpr(n.Source) + ") " + r.renderStatement(n.Body)
	}
	param := r.renderForIntoParam(n.Into)
	body := r.renderLoopBody(n.Body)
	return fmt.Sprintf("await __safe_forIn(%s, (%s) => %s);", r.renderExpr(n.Source), param, body)
}

func (r *renderer) renderForInto(into ast.ForInto) string {
	switch i := into.(type) {
	case *ast.ForIntoExpression:
		return r.renderExpr(i.Expression)
	case *ast.ForIntoVar:
		return "let " + r.renderBindingTarget(i.Binding.Target)
	default:
		return "_"
	}
}

func (r *renderer) renderForIntoParam(into ast.ForInto) string {
	switch i := into.(type) {
	case *ast.ForIntoExpression:
		if id, ok := i.Expression.(*ast.Identifier); ok {
			return string(id.Name)
		}
	case *ast.ForIntoVar:
		return r.renderBindingTarget(i.Binding.Target)
	}
	return "__ag_it"
}

// renderWhile applies transform_loops: `while (test) body` becomes
// `await __safe_while(() => (test), () => { body })`.
func (r *renderer) renderWhile(n *ast.WhileStatement) string {
	if !r.ctx.TransformLoops {
		return "while (" + r.renderExpr(n.Test) + ") " + r.renderStatement(n.Body)
	}
	test := "() => (" + r.renderExpr(n.Test) + ")"
	body := r.renderLoopBody(n.Body)
	return fmt.Sprintf("await __safe_while(%s, %s);", test, body)
}

// renderDoWhile applies transform_loops: `do body while (test)` becomes
// `await __safe_doWhile(() => { body }, () => (test));` — the helper runs
// the body thunk once unconditionally before consulting test, preserving
// do-while's run-at-least-once semantics.
func (r *renderer) renderDoWhile(n *ast.DoWhileStatement) string {
	if !r.ctx.TransformLoops {
		return "do " + r.renderStatement(n.Body) + " while (" + r.renderExpr(n.Test) + ");"
	}
	test := "() => (" + r.renderExpr(n.Test) + ")"
	body := r.renderLoopBody(n.Body)
	return fmt.Sprintf("await __safe_doWhile(%s, %s);", body, test)
}

// renderLoopBody renders a loop's body as a block-bodied arrow function
// suitable as a __safe_* helper argument, descending loopDepth so any
// directly-nested (non-crossing) break/continue becomes the sentinel
// return the helper expects. Nested loop/switch statements reset their
// own depth when rendered, since their own renderFor/renderWhile/etc.
// call wraps them independently and a break/continue inside them targets
// that inner construct, not this one.
func (r *renderer) renderLoopBody(body ast.Statement) string {
	r.loopDepth++
	defer func() { r.loopDepth-- }()

	if block, ok := body.(*ast.BlockStatement); ok {
		return "{\n" + r.renderStatements(block.List) + "}"
	}
	return "{\n" + r.renderStatement(body) + "\n}"
}

func (r *renderer) renderFunction(fn *ast.FunctionLiteral, declaration bool) string {
	if fn == nil {
		return ""
	}
	name := ""
	if fn.Name != nil {
		name = string(fn.Name.Name)
	}
	prefix := "function"
	if fn.Async {
		prefix = "async function"
	}
	params := r.renderParameterList(fn.ParameterList)
	savedDepth := r.loopDepth
	r.loopDepth = 0
	body := "{\n" + r.renderBlockList(fn.Body) + "}"
	r.loopDepth = savedDepth

	if declaration {
		return prefix + " " + name + "(" + params + ") " + body
	}
	return "(" + prefix + " " + name + "(" + params + ") " + body + ")"
}

func (r *renderer) renderBlockList(body *ast.BlockStatement) string {
	if body == nil {
		return ""
	}
	return r.renderStatements(body.List)
}

func (r *renderer) renderParameterList(pl *ast.ParameterList) string {
	if pl == nil {
		return ""
	}
	parts := make([]string, 0, len(pl.List))
	for _, b := range pl.List {
		parts = append(parts, r.renderBindingTarget(b.Target))
	}
	if pl.Rest != nil {
		parts = append(parts, "..."+r.renderExpr(pl.Rest))
	}
	return strings.Join(parts, ", ")
}

func (r *renderer) renderExpr(expr ast.Expression) string {
	switch n := expr.(type) {
	case nil:
		return "undefined"
	case *ast.Identifier:
		return string(n.Name)
	case *ast.StringLiteral:
		return r.renderStringLiteral(n)
	case *ast.NumberLiteral:
		return formatNumber(n.Value)
	case *ast.BooleanLiteral:
		if n.Value {
			return "true"
		}
		return "false"
	case *ast.NullLiteral:
		return "null"
	case *ast.RegExpLiteral:
		return n.Literal
	case *ast.ThisExpression:
		return "this"
	case *ast.ArrayLiteral:
		parts := make([]string, 0, len(n.Value))
		for _, v := range n.Value {
			parts = append(parts, r.renderExpr(v))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ast.ObjectLiteral:
		return r.renderObjectLiteral(n)
	case *ast.TemplateLiteral:
		return r.renderTemplateLiteral(n)
	case *ast.AssignExpression:
		return r.renderExpr(n.Left) + " " + n.Operator.String() + " " + r.renderExpr(n.Right)
	case *ast.BinaryExpression:
		return r.renderBinary(n)
	case *ast.UnaryExpression:
		if n.Postfix {
			return r.renderExpr(n.Operand) + n.Operator.String()
		}
		return n.Operator.String() + r.renderExpr(n.Operand)
	case *ast.ConditionalExpression:
		return "(" + r.renderExpr(n.Test) + " ? " + r.renderExpr(n.Consequent) + " : " + r.renderExpr(n.Alternate) + ")"
	case *ast.SequenceExpression:
		parts := make([]string, 0, len(n.Sequence))
		for _, e := range n.Sequence {
			parts = append(parts, r.renderExpr(e))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *ast.CallExpression:
		return r.renderCall(n)
	case *ast.NewExpression:
		return "new " + r.renderExpr(n.Callee) + "(" + r.renderArgs(n.ArgumentList) + ")"
	case *ast.DotExpression:
		return r.renderExpr(n.Left) + "." + string(n.Identifier.Name)
	case *ast.BracketExpression:
		return r.renderExpr(n.Left) + "[" + r.renderExpr(n.Member) + "]"
	case *ast.FunctionLiteral:
		return r.renderFunction(n, false)
	case *ast.ArrowFunctionLiteral:
		return r.renderArrow(n)
	case *ast.AwaitExpression:
		return "await " + r.renderExpr(n.Argument)
	default:
		return "undefined"
	}
}

// renderStringLiteral applies extract_large_strings when enabled: a
// literal longer than LargeStringThreshold bytes is spilled to the
// sidecar and replaced by a lookup call, keeping the oversized text out of
// the script the executor actually parses and walks.
func (r *renderer) renderStringLiteral(n *ast.StringLiteral) string {
	value := string(n.Value)
	if r.ctx.ExtractLargeStrings && r.ctx.Sidecar != nil && len(value) > r.ctx.LargeStringThreshold {
		if handle, ok := r.ctx.Sidecar.Put(value); ok {
			return "__safe_sidecarGet(" + strconv.Quote(handle) + ")"
		}
	}
	return strconv.Quote(value)
}

func (r *renderer) renderArgs(args []ast.Expression) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, r.renderExpr(a))
	}
	return strings.Join(parts, ", ")
}

// renderCall applies transform_call_tool: a direct call to the bare
// identifier callTool is redirected to __safe_callTool, the only path
// through which guest code may reach the host tool bridge.
func (r *renderer) renderCall(n *ast.CallExpression) string {
	if r.ctx.TransformCallTool {
		if id, ok := n.Callee.(*ast.Identifier); ok && string(id.Name) == "callTool" {
			return "__safe_callTool(" + r.renderArgs(n.ArgumentList) + ")"
		}
	}
	return r.renderExpr(n.Callee) + "(" + r.renderArgs(n.ArgumentList) + ")"
}

// renderBinary applies transform_concatenation when enabled: a `+` chain
// whose operands are not exclusively numeric becomes a call to
// __safe_concat, which enforces the bounded result-length check the plain
// `+` operator has no hook for.
func (r *renderer) renderBinary(n *ast.BinaryExpression) string {
	if r.ctx.TransformConcat && n.Operator.String() == "+" {
		return "__safe_concat(" + r.renderExpr(n.Left) + ", " + r.renderExpr(n.Right) + ")"
	}
	return "(" + r.renderExpr(n.Left) + " " + n.Operator.String() + " " + r.renderExpr(n.Right) + ")"
}

// renderTemplateLiteral applies transform_templates when enabled: a
// template literal becomes a call to __safe_template(quasis, exprs...),
// which enforces the same bounded result-length check as __safe_concat.
func (r *renderer) renderTemplateLiteral(n *ast.TemplateLiteral) string {
	if !r.ctx.TransformTemplates {
		return r.renderTemplateVerbatim(n)
	}
	quasis := make([]string, 0, len(n.Elements))
	for _, q := range n.Elements {
		quasis = append(quasis, strconv.Quote(string(q.Parsed)))
	}
	exprs := make([]string, 0, len(n.Expressions))
	for _, e := range n.Expressions {
		exprs = append(exprs, r.renderExpr(e))
	}
	args := append([]string{"[" + strings.Join(quasis, ", ") + "]"}, exprs...)
	return "__safe_template(" + strings.Join(args, ", ") + ")"
}

func (r *renderer) renderTemplateVerbatim(n *ast.TemplateLiteral) string {
	var sb strings.Builder
	sb.WriteString("`")
	for i, q := range n.Elements {
		sb.WriteString(string(q.Literal))
		if i < len(n.Expressions) {
			sb.WriteString("${" + r.renderExpr(n.Expressions[i]) + "}")
		}
	}
	sb.WriteString("`")
	return sb.String()
}

func (r *renderer) renderObjectLiteral(n *ast.ObjectLiteral) string {
	parts := make([]string, 0, len(n.Value))
	for _, p := range n.Value {
		switch prop := p.(type) {
		case *ast.PropertyKeyed:
			key := r.renderExpr(prop.Key)
			if id, ok := prop.Key.(*ast.Identifier); ok && !prop.Computed {
				key = string(id.Name)
			}
			if prop.Computed {
				key = "[" + r.renderExpr(prop.Key) + "]"
			}
			parts = append(parts, key+": "+r.renderExpr(prop.Value))
		case *ast.PropertyShort:
			entry := string(prop.Name.Name)
			if prop.Initializer != nil {
				entry += " = " + r.renderExpr(prop.Initializer)
			}
			parts = append(parts, entry)
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (r *renderer) renderArrow(n *ast.ArrowFunctionLiteral) string {
	prefix := ""
	if n.Async {
		prefix = "async "
	}
	params := r.renderParameterList(n.ParameterList)

	savedDepth := r.loopDepth
	r.loopDepth = 0
	defer func() { r.loopDepth = savedDepth }()

	switch body := n.Body.(type) {
	case *ast.BlockStatement:
		return prefix + "(" + params + ") => {\n" + r.renderBlockList(body) + "}"
	case ast.Expression:
		return prefix + "(" + params + ") => (" + r.renderExpr(body) + ")"
	default:
		return prefix + "(" + params + ") => undefined"
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
