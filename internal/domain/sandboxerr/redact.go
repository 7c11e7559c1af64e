package sandboxerr

import (
	"bufio"
	"regexp"
	"strings"
)

// redactionPatterns is the fixed table of path/URI/credential shapes that
// must never reach the embedder in a sanitized stack trace. Order does not
// matter; every pattern is applied to every line.
var redactionPatterns = []*regexp.Regexp{
	// User home directories (macOS/Linux).
	regexp.MustCompile(`/Users/[^/\s]+`),
	regexp.MustCompile(`/home/[^/\s]+`),
	// Common system/package paths.
	regexp.MustCompile(`/var/[^\s]*`),
	regexp.MustCompile(`/tmp/[^\s]*`),
	regexp.MustCompile(`/etc/[^\s]*`),
	regexp.MustCompile(`/opt/[^\s]*`),
	regexp.MustCompile(`/app/[^\s]*`),
	regexp.MustCompile(`node_modules[^\s]*`),
	regexp.MustCompile(`\.(npm|yarn|pnpm|nix)/[^\s]*`),
	// Windows drives and UNC paths.
	regexp.MustCompile(`[A-Za-z]:\\[^\s]*`),
	regexp.MustCompile(`\\\\[^\s]+`),
	// File/bundler URLs.
	regexp.MustCompile(`file://[^\s]*`),
	regexp.MustCompile(`webpack://[^\s]*`),
	// Container-runtime paths.
	regexp.MustCompile(`/run/secrets[^\s]*`),
	regexp.MustCompile(`/docker[^\s]*`),
	regexp.MustCompile(`/kubelet[^\s]*`),
	// CI/CD paths.
	regexp.MustCompile(`/github/workspace[^\s]*`),
	regexp.MustCompile(`/runner[^\s]*`),
	regexp.MustCompile(`/builds[^\s]*`),
	regexp.MustCompile(`/jenkins[^\s]*`),
	regexp.MustCompile(`/workspace[^\s]*`),
	// Cloud object URIs.
	regexp.MustCompile(`s3://[^\s]*`),
	regexp.MustCompile(`gs://[^\s]*`),
	regexp.MustCompile(`/aws/[^\s]*`),
	// Credential-shaped tokens.
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                 // AWS access key
	regexp.MustCompile(`ghp_[0-9A-Za-z]{36}`),               // GitHub PAT
	regexp.MustCompile(`xox[baprs]-[0-9A-Za-z-]+`),          // Slack token
	regexp.MustCompile(`(?i)bearer\s+[0-9A-Za-z._-]+`),      // bearer token
	regexp.MustCompile(`(?i)basic\s+[0-9A-Za-z+/=]+`),       // basic auth
	// Private-network IP literals with a port.
	regexp.MustCompile(`\b(?:10|127)(?:\.\d{1,3}){3}:\d+\b`),
	regexp.MustCompile(`\b192\.168(?:\.\d{1,3}){2}:\d+\b`),
	regexp.MustCompile(`\b172\.(?:1[6-9]|2\d|3[01])(?:\.\d{1,3}){2}:\d+\b`),
	regexp.MustCompile(`\b169\.254(?:\.\d{1,3}){2}:\d+\b`),
}

// bootstrapFrameMarkers identify stack frames that name an internal
// bootstrap file; such frames are dropped entirely rather than redacted.
var bootstrapFrameMarkers = []string{
	"__ag_prelude",
	"sentinel-enclave/internal/adapter/outbound/v8sandbox",
}

const redactedToken = "[REDACTED]"

// RedactStack walks a raw stack string line by line, replacing every
// matched path/URI/credential shape with [REDACTED] and dropping any frame
// that names an internal bootstrap file. It is a no-op on an empty stack.
func RedactStack(stack string) string {
	if stack == "" {
		return stack
	}
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(stack))
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if isBootstrapFrame(line) {
			continue
		}
		for _, pattern := range redactionPatterns {
			line = pattern.ReplaceAllString(line, redactedToken)
		}
		if !first {
			out.WriteByte('\n')
		}
		out.WriteString(line)
		first = false
	}
	return out.String()
}

func isBootstrapFrame(line string) bool {
	for _, marker := range bootstrapFrameMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
