package transform

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

// Transform parses source (already validated by the caller) and re-renders
// it with every enabled rewrite from §4.2 applied: entry wrapping,
// __safe_callTool redirection, bounded-loop rewriting, and the optional
// concatenation/template/large-string rewrites.
//
// Transform does not change module shape, variable bindings, or lexical
// scope semantics — every rewrite is local, matching §4.2's closing
// paragraph.
func Transform(source string, ctx Context) (string, error) {
	program, err := parser.ParseFile(file.NewFileSet(), "", source, 0)
	if err != nil {
		return "", err
	}

	r := &renderer{ctx: ctx}
	body := r.renderProgramBody(program)

	if !ctx.WrapInMain || alreadyWrapped(program) {
		return body, nil
	}
	return "async function __ag_main() {\n" + body + "\n}", nil
}

// alreadyWrapped reports whether source already consists of exactly one
// top-level async function declaration named __ag_main, in which case
// wrap_in_main is a no-op per §4.2.
func alreadyWrapped(program *ast.Program) bool {
	if len(program.Body) != 1 {
		return false
	}
	decl, ok := program.Body[0].(*ast.FunctionDeclaration)
	if !ok || decl.Function == nil {
		return false
	}
	if !decl.Function.Async {
		return false
	}
	return decl.Function.Name != nil && string(decl.Function.Name.Name) == "__ag_main"
}
