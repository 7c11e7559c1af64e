package v8sandbox

import "testing"

func TestProxyFactoryScriptQuotesDenyList(t *testing.T) {
	t.Parallel()

	script := proxyFactoryScript([]string{"constructor", "__proto__"}, 10)

	if !contains(script, `"constructor"`) || !contains(script, `"__proto__"`) {
		t.Fatalf("expected deny list entries to be quoted, got: %s", script)
	}
	if !contains(script, "makeSecureProxy") {
		t.Fatalf("expected makeSecureProxy to be defined, got: %s", script)
	}
	if !contains(script, "__ag_maxDepth = 10") {
		t.Fatalf("expected max depth to be embedded, got: %s", script)
	}
}

func TestProxyFactoryScriptHandlesEmptyDenyList(t *testing.T) {
	t.Parallel()

	script := proxyFactoryScript(nil, 5)
	if !contains(script, "new Set([])") {
		t.Fatalf("expected an empty deny set, got: %s", script)
	}
}

func TestProxyFactoryScriptThrowsOnConstruct(t *testing.T) {
	t.Parallel()

	script := proxyFactoryScript(nil, 5)
	if !contains(script, "construction through a secure proxy is not permitted") {
		t.Fatalf("expected construct trap to reject, got: %s", script)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
