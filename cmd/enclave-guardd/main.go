// Command enclave-guardd executes agent-authored JavaScript inside a
// validated, transformed, and resource-bounded V8 sandbox.
package main

import "github.com/agentscript/sentinel-enclave/cmd/enclave-guardd/cmd"

func main() {
	cmd.Execute()
}
