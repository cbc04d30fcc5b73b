// Package engine evaluates the admin-bypass access policy with OPA Rego.
package engine

import (
	"fmt"
	"os"
)

const bypassQuery = "data.carescope.access.bypass_membership"

// defaultRegoPolicy mirrors rbac.CanBypassMembership.
const defaultRegoPolicy = `package carescope.access

default bypass_membership := false

bypass_membership if {
	input.role == "admin"
	input.operation.mode == "admin_bypass"
}
`

// LoadPolicy returns the Rego source at path, or the embedded default when path is empty.
func LoadPolicy(path string) (string, error) {
	if path == "" {
		return defaultRegoPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read access policy: %w", err)
	}
	return string(b), nil
}
