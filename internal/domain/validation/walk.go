package validation

import "github.com/dop251/goja/ast"

// Visitor is called once per AST node in pre-order. Returning false tells
// Walk not to descend into that node's children; Walk still visits every
// sibling regardless of a visitor's return value, matching §4.1's "the
// walker does not early-return" requirement — rule violations are
// accumulated, never used to abort the traversal.
type Visitor func(node ast.Node) bool

// Walk performs a pre-order traversal of the subset of the ECMAScript
// grammar this sandbox accepts. It is written against the node shapes the
// transformed/validated programs actually use; nodes outside that subset
// (classes, generators, decorators) are visited but their children are
// not walked.
func Walk(node ast.Node, visit Visitor) {
	if node == nil || isNilNode(node) {
		return
	}
	if !visit(node) {
		return
	}
	switch n := node.(type) {
	case *ast.Program:
		for _, s := range n.Body {
			Walk(s, visit)
		}

	case *ast.ExpressionStatement:
		Walk(n.Expression, visit)
	case *ast.BlockStatement:
		for _, s := range n.List {
			Walk(s, visit)
		}
	case *ast.IfStatement:
		Walk(n.Test, visit)
		Walk(n.Consequent, visit)
		Walk(n.Alternate, visit)
	case *ast.ForStatement:
		Walk(n.Initializer, visit)
		Walk(n.Test, visit)
		Walk(n.Update, visit)
		Walk(n.Body, visit)
	case *ast.ForInStatement:
		Walk(n.Into, visit)
		Walk(n.Source, visit)
		Walk(n.Body, visit)
	case *ast.ForOfStatement:
		Walk(n.Into, visit)
		Walk(n.Source, visit)
		Walk(n.Body, visit)
	case *ast.WhileStatement:
		Walk(n.Test, visit)
		Walk(n.Body, visit)
	case *ast.DoWhileStatement:
		Walk(n.Test, visit)
		Walk(n.Body, visit)
	case *ast.ReturnStatement:
		Walk(n.Argument, visit)
	case *ast.ThrowStatement:
		Walk(n.Argument, visit)
	case *ast.TryStatement:
		Walk(n.Body, visit)
		if n.Catch != nil {
			Walk(n.Catch.Body, visit)
		}
		Walk(n.Finally, visit)
	case *ast.SwitchStatement:
		Walk(n.Discriminant, visit)
		for _, c := range n.Body {
			Walk(c.Test, visit)
			for _, s := range c.Consequent {
				Walk(s, visit)
			}
		}
	case *ast.LabelledStatement:
		Walk(n.Statement, visit)
	case *ast.WithStatement:
		Walk(n.Object, visit)
		Walk(n.Body, visit)
	case *ast.VariableStatement:
		for _, b := range n.List {
			Walk(b.Target, visit)
			Walk(b.Initializer, visit)
		}
	case *ast.FunctionDeclaration:
		walkFunction(n.Function, visit)
	case *ast.EmptyStatement, *ast.BranchStatement, *ast.DebuggerStatement:
		// leaves, nothing further to walk

	case *ast.Identifier, *ast.StringLiteral, *ast.NumberLiteral,
		*ast.BooleanLiteral, *ast.NullLiteral, *ast.RegExpLiteral, *ast.ThisExpression:
		// literal/identifier leaves

	case *ast.ArrayLiteral:
		for _, v := range n.Value {
			Walk(v, visit)
		}
	case *ast.ObjectLiteral:
		for _, p := range n.Value {
			walkProperty(p, visit)
		}
	case *ast.TemplateLiteral:
		for _, e := range n.Expressions {
			Walk(e, visit)
		}
	case *ast.AssignExpression:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *ast.BinaryExpression:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *ast.UnaryExpression:
		Walk(n.Operand, visit)
	case *ast.ConditionalExpression:
		Walk(n.Test, visit)
		Walk(n.Consequent, visit)
		Walk(n.Alternate, visit)
	case *ast.SequenceExpression:
		for _, e := range n.Sequence {
			Walk(e, visit)
		}
	case *ast.CallExpression:
		Walk(n.Callee, visit)
		for _, a := range n.ArgumentList {
			Walk(a, visit)
		}
	case *ast.NewExpression:
		Walk(n.Callee, visit)
		for _, a := range n.ArgumentList {
			Walk(a, visit)
		}
	case *ast.DotExpression:
		Walk(n.Left, visit)
		// n.Identifier is the property name, not a free-variable
		// reference — visitDisallowedIdentifier/visitUnknownGlobal must
		// never see it, or `o.self`/`console.log`/`Math.floor` all fail
		// validation despite "self"/"log"/"floor" never being declared or
		// denylisted as globals. Rules that do care about a member's name
		// (visitNoMetaProgramming, visitNoGlobalAccess, ...) read
		// n.Identifier directly off the DotExpression node instead of
		// relying on a separate Identifier-node visit.
	case *ast.BracketExpression:
		Walk(n.Left, visit)
		Walk(n.Member, visit)
	case *ast.FunctionLiteral:
		walkFunction(n, visit)
	case *ast.ArrowFunctionLiteral:
		if n.Body != nil {
			Walk(n.Body, visit)
		}
	case *ast.AwaitExpression:
		Walk(n.Argument, visit)

	default:
		// Node kinds outside the accepted grammar subset (classes,
		// generators, optional chaining variants, tagged templates) are
		// left unwalked; SECURITY_VIOLATION and the parser itself are the
		// backstop for shapes this walker doesn't specialize.
	}
}

func walkFunction(fn *ast.FunctionLiteral, visit Visitor) {
	if fn == nil {
		return
	}
	if fn.Body != nil {
		Walk(fn.Body, visit)
	}
}

func walkProperty(p ast.Property, visit Visitor) {
	switch prop := p.(type) {
	case *ast.PropertyKeyed:
		// A non-computed key (`{self: 1}`) is a property name, the same
		// non-reference position as a DotExpression's Identifier; only a
		// computed key (`{[x]: 1}`) evaluates an expression that can
		// reference a real (and possibly disallowed) identifier.
		if prop.Computed {
			Walk(prop.Key, visit)
		}
		Walk(prop.Value, visit)
	case *ast.PropertyShort:
		Walk(&prop.Name, visit)
		Walk(prop.Initializer, visit)
	}
}

// isNilNode guards against typed-nil interface values (e.g. a nil
// *ast.BlockStatement boxed into the Node/Statement/Expression interface),
// which compare != nil under plain `node == nil` but still panic on use.
func isNilNode(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.BlockStatement:
		return n == nil
	case *ast.Identifier:
		return n == nil
	case *ast.FunctionLiteral:
		return n == nil
	case ast.Expression:
		return n == nil
	case ast.Statement:
		return n == nil
	default:
		return false
	}
}
