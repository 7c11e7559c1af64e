package cel

import "testing"

func TestMatcherGlobPattern(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher([]string{"fs.*"})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	ok, err := m.Match("fs.readFile")
	if err != nil || !ok {
		t.Errorf("Match(fs.readFile) = %v, %v; want true, nil", ok, err)
	}

	ok, err = m.Match("net.fetch")
	if err != nil || ok {
		t.Errorf("Match(net.fetch) = %v, %v; want false, nil", ok, err)
	}
}

func TestMatcherCELExpression(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher([]string{`name == "fs.readFile" || name == "fs.writeFile"`})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	for _, tt := range []struct {
		name string
		want bool
	}{
		{"fs.readFile", true},
		{"fs.writeFile", true},
		{"fs.deleteFile", false},
	} {
		ok, err := m.Match(tt.name)
		if err != nil {
			t.Fatalf("Match(%q): %v", tt.name, err)
		}
		if ok != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, ok, tt.want)
		}
	}
}

func TestMatcherGlobFunctionInCEL(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher([]string{`glob("net.*", name)`})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	ok, err := m.Match("net.fetch")
	if err != nil || !ok {
		t.Errorf("Match(net.fetch) = %v, %v; want true, nil", ok, err)
	}
}

func TestMatcherRejectsOversizedPattern(t *testing.T) {
	t.Parallel()

	huge := make([]byte, maxExpressionLength+1)
	for i := range huge {
		huge[i] = 'a'
	}

	_, err := NewMatcher([]string{string(huge)})
	if err == nil {
		t.Fatal("NewMatcher() expected error for oversized pattern, got nil")
	}
}

func TestMatcherRejectsDeepNesting(t *testing.T) {
	t.Parallel()

	pattern := ""
	for i := 0; i < maxNestingDepth+5; i++ {
		pattern += "("
	}
	pattern += "true"
	for i := 0; i < maxNestingDepth+5; i++ {
		pattern += ")"
	}

	_, err := NewMatcher([]string{pattern})
	if err == nil {
		t.Fatal("NewMatcher() expected error for deep nesting, got nil")
	}
}

func TestMatcherEmptyPatternListAllowsNothing(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher(nil)
	if err != nil {
		t.Fatalf("NewMatcher(nil): %v", err)
	}
	ok, err := m.Match("anything")
	if err != nil || ok {
		t.Errorf("Match(anything) with no patterns = %v, %v; want false, nil", ok, err)
	}
}
