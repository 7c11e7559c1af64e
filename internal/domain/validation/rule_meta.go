package validation

import (
	"strconv"
	"strings"

	"github.com/dop251/goja/ast"
)

// metaProgrammingProperties is the NO_META_PROGRAMMING table from §4.1.
var metaProgrammingProperties = map[string]bool{
	"setPrototypeOf": true, "getPrototypeOf": true,
	"defineProperty": true, "defineProperties": true,
	"getOwnPropertyDescriptor": true, "getOwnPropertyDescriptors": true,
	"getOwnPropertyNames": true, "getOwnPropertySymbols": true,
}

// computedConstructorTargets is the set of property names NO_COMPUTED_CONSTRUCTOR
// guards: reaching any of these through a dynamically-built key is an escape
// attempt regardless of how the key string was assembled.
var computedConstructorTargets = map[string]bool{
	"constructor": true, "__proto__": true, "prototype": true,
}

// visitNoMetaProgramming flags `.setPrototypeOf` / `.getOwnPropertyNames` /
// etc. member access, computed or not: these names have no legitimate use
// inside the sandbox grammar.
func visitNoMetaProgramming(ctx *RuleContext, node ast.Node) {
	switch n := node.(type) {
	case *ast.DotExpression:
		if metaProgrammingProperties[string(n.Identifier.Name)] {
			ctx.reportError(CodeNoMetaProgramming, "meta-programming property \""+string(n.Identifier.Name)+"\" accessed", node)
		}
	case *ast.BracketExpression:
		if s, ok := evalStaticString(n.Member); ok && metaProgrammingProperties[s] {
			ctx.reportError(CodeNoMetaProgramming, "meta-programming property \""+s+"\" accessed via computed member", node)
		}
	}
}

// visitNoComputedConstructor flags a computed member expression whose key
// statically evaluates to "constructor", "__proto__", or "prototype" no
// matter how it was built: concatenation, template literals, `join`,
// `fromCharCode`/`fromCodePoint`, or escape-obfuscated literals.
func visitNoComputedConstructor(ctx *RuleContext, node ast.Node) {
	br, ok := node.(*ast.BracketExpression)
	if !ok {
		return
	}
	if s, ok := evalStaticString(br.Member); ok && computedConstructorTargets[s] {
		ctx.reportError(CodeNoComputedConstructor, "computed member key statically evaluates to \""+s+"\"", node)
	}
}

// visitNoComputedDestructuring flags object destructuring patterns with
// any computed key, e.g. `const { [k]: v } = obj`.
func visitNoComputedDestructuring(ctx *RuleContext, node ast.Node) {
	obj, ok := node.(*ast.ObjectPattern)
	if !ok {
		return
	}
	for _, p := range obj.Properties {
		if keyed, ok := p.(*ast.PropertyKeyed); ok && keyed.Computed {
			ctx.reportError(CodeNoComputedDestructuring, "destructuring uses a computed key", node)
		}
	}
}

// evalStaticString attempts to statically evaluate expr to a constant
// string, covering the obfuscation techniques §4.1/§9 call out: plain
// string literals, escape-decoded literals, `+` concatenation chains,
// template literals with only literal quasis, `String.fromCharCode`/
// `fromCodePoint` calls with numeric-literal arguments, and `[...].join(s)`
// over literal arrays.
func evalStaticString(expr ast.Expression) (string, bool) {
	switch e := expr.(type) {
	case *ast.StringLiteral:
		return string(e.Value), true

	case *ast.BinaryExpression:
		if e.Operator.String() != "+" {
			return "", false
		}
		left, ok := evalStaticString(e.Left)
		if !ok {
			return "", false
		}
		right, ok := evalStaticString(e.Right)
		if !ok {
			return "", false
		}
		return left + right, true

	case *ast.TemplateLiteral:
		if len(e.Expressions) != 0 {
			return "", false
		}
		var sb strings.Builder
		for _, q := range e.Elements {
			sb.WriteString(string(q.Parsed))
		}
		return sb.String(), true

	case *ast.CallExpression:
		return evalStaticStringCall(e)

	default:
		return "", false
	}
}

func evalStaticStringCall(call *ast.CallExpression) (string, bool) {
	dot, ok := call.Callee.(*ast.DotExpression)
	if !ok {
		return "", false
	}
	method := string(dot.Identifier.Name)

	switch method {
	case "fromCharCode", "fromCodePoint":
		recv, ok := dot.Left.(*ast.Identifier)
		if !ok || string(recv.Name) != "String" {
			return "", false
		}
		var sb strings.Builder
		for _, arg := range call.ArgumentList {
			n, ok := arg.(*ast.NumberLiteral)
			if !ok {
				return "", false
			}
			sb.WriteRune(rune(int(n.Value)))
		}
		return sb.String(), true

	case "join":
		arr, isArr := dot.Left.(*ast.ArrayLiteral)
		inner, isCall := dot.Left.(*ast.CallExpression)
		if !isArr && !isCall {
			return "", false
		}
		sep := ","
		if len(call.ArgumentList) == 1 {
			s, ok := evalStaticString(call.ArgumentList[0])
			if !ok {
				return "", false
			}
			sep = s
		}
		if isCall {
			innerDot, ok := inner.Callee.(*ast.DotExpression)
			if !ok || string(innerDot.Identifier.Name) != "split" || len(inner.ArgumentList) != 1 {
				return "", false
			}
			recvStr, ok1 := evalStaticString(innerDot.Left)
			splitSep, ok2 := evalStaticString(inner.ArgumentList[0])
			if !ok1 || !ok2 {
				return "", false
			}
			return strings.Join(strings.Split(recvStr, splitSep), sep), true
		}
		parts := make([]string, 0, len(arr.Value))
		for _, v := range arr.Value {
			s, ok := evalStaticString(v)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, sep), true

	case "split":
		// `"c-o-n".split("-").join("")`-style obfuscation is handled by the
		// join case, which replays split/join on the evaluated receiver; a
		// bare split evaluates to its pieces concatenated. Anything more
		// dynamic than a literal receiver and literal separator falls
		// through and is left to the runtime proxy backstop.
		recvStr, ok := evalStaticString(dot.Left)
		if !ok || len(call.ArgumentList) != 1 {
			return "", false
		}
		sep, ok := evalStaticString(call.ArgumentList[0])
		if !ok {
			return "", false
		}
		return strings.Join(strings.Split(recvStr, sep), ""), true
	}
	return "", false
}

// decodeEscapes decodes \xNN and \uNNNN sequences that may appear inside a
// raw literal string source (used when a literal's Value has already
// preserved escapes rather than decoding them during lexing).
func decodeEscapes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'x':
				if i+4 <= len(s) {
					if v, err := strconv.ParseInt(s[i+2:i+4], 16, 32); err == nil {
						sb.WriteRune(rune(v))
						i += 4
						continue
					}
				}
			case 'u':
				if i+6 <= len(s) {
					if v, err := strconv.ParseInt(s[i+2:i+6], 16, 32); err == nil {
						sb.WriteRune(rune(v))
						i += 6
						continue
					}
				}
			}
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}
