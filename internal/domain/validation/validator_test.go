package validation

import (
	"testing"

	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
)

func validateDefault(t *testing.T, source string) Result {
	t.Helper()
	v := New(DefaultRules())
	return v.Validate(source, Options{Preset: policy.StandardPreset})
}

func TestValidateAllowsMemberAccessOnBuiltins(t *testing.T) {
	result := validateDefault(t, `console.log("hi"); const n = Math.floor(1.5); return JSON.stringify(n);`)
	if !result.Valid {
		t.Fatalf("expected valid result, got issues: %+v, parseError: %q", result.Issues, result.ParseError)
	}
}

func TestValidateAllowsCircularSelfReferenceAssignment(t *testing.T) {
	// Scenario F: the property name "self" is on the DISALLOWED_IDENTIFIER
	// deny list as a bare global, but it must never be flagged when it
	// appears as a DotExpression's property name rather than a free
	// identifier reference.
	result := validateDefault(t, `const o = {}; o.self = o; return callTool("save", o);`)
	if !result.Valid {
		t.Fatalf("expected valid result, got issues: %+v, parseError: %q", result.Issues, result.ParseError)
	}
}

func TestValidateAllowsNonComputedObjectKeyNamedAfterADenylistedIdentifier(t *testing.T) {
	result := validateDefault(t, `const o = { self: 1, constructor: 2 }; return o.self;`)
	if !result.Valid {
		t.Fatalf("expected valid result, got issues: %+v, parseError: %q", result.Issues, result.ParseError)
	}
}

func TestValidateHappyPath(t *testing.T) {
	result := validateDefault(t, `const x = 1; return x + 1;`)
	if !result.Valid {
		t.Fatalf("expected valid result, got issues: %+v, parseError: %q", result.Issues, result.ParseError)
	}
}

func TestValidateRejectsDisallowedIdentifier(t *testing.T) {
	result := validateDefault(t, `return eval("1+1");`)
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if !hasIssueCode(result.Issues, CodeDisallowedIdentifier) {
		t.Fatalf("expected %s among issues, got %+v", CodeDisallowedIdentifier, result.Issues)
	}
}

func TestValidateRejectsObfuscatedConstructorAccess(t *testing.T) {
	result := validateDefault(t, `const k = "con" + "structor"; return Array[k];`)
	if result.Valid {
		t.Fatalf("expected invalid result for obfuscated constructor access")
	}
	if !hasIssueCode(result.Issues, CodeNoComputedConstructor) && !hasIssueCode(result.Issues, CodeUnknownGlobal) {
		t.Fatalf("expected NO_COMPUTED_CONSTRUCTOR or UNKNOWN_GLOBAL among issues, got %+v", result.Issues)
	}
}

func TestValidateRejectsUnknownGlobal(t *testing.T) {
	result := validateDefault(t, `return someUndeclaredThing;`)
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if !hasIssueCode(result.Issues, CodeUnknownGlobal) {
		t.Fatalf("expected %s among issues, got %+v", CodeUnknownGlobal, result.Issues)
	}
}

func TestValidateRejectsInfiniteLoop(t *testing.T) {
	result := validateDefault(t, `while (true) { }`)
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if !hasIssueCode(result.Issues, CodeInfiniteLoop) {
		t.Fatalf("expected %s among issues, got %+v", CodeInfiniteLoop, result.Issues)
	}
}

func TestValidateAllowsBoundedLoop(t *testing.T) {
	result := validateDefault(t, `let n = 0; for (let i = 0; i < 10; i = i + 1) { n = n + i; } return n;`)
	if !result.Valid {
		t.Fatalf("expected valid result, got issues: %+v", result.Issues)
	}
}

func TestValidateRejectsRegexLiteral(t *testing.T) {
	result := validateDefault(t, `return /abc/.test("abc");`)
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if !hasIssueCode(result.Issues, CodeNoRegexLiteral) {
		t.Fatalf("expected %s among issues, got %+v", CodeNoRegexLiteral, result.Issues)
	}
}

func TestValidateRejectsFunctionDeclaration(t *testing.T) {
	result := validateDefault(t, `function helper() { return 1; } return helper();`)
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if !hasIssueCode(result.Issues, CodeNoFunctionDecl) {
		t.Fatalf("expected %s among issues, got %+v", CodeNoFunctionDecl, result.Issues)
	}
}

func TestValidateAllowsArrowFunction(t *testing.T) {
	result := validateDefault(t, `const double = (x) => x * 2; return double(21);`)
	if !result.Valid {
		t.Fatalf("expected valid result, got issues: %+v", result.Issues)
	}
}

func TestValidateParseErrorNeverPanics(t *testing.T) {
	result := validateDefault(t, `const x = ;;; {{{`)
	if result.Valid {
		t.Fatalf("expected invalid result for malformed source")
	}
	if result.ParseError == "" {
		t.Fatalf("expected a parse error to be set")
	}
}

func TestValidateRejectsNulByte(t *testing.T) {
	result := validateDefault(t, "return 1;\x00")
	if result.Valid {
		t.Fatalf("expected invalid result for NUL byte")
	}
}

func hasIssueCode(issues []Issue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}
