package defra

import (
	"fmt"
	"regexp"
)

// IDPattern matches DefraDB document IDs and uuid-style identifiers.
var IDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID checks if a string is safe to use as an identifier in queries.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty ID")
	}
	if len(id) > 500 {
		return fmt.Errorf("ID too long: %d characters", len(id))
	}
	if !IDPattern.MatchString(id) {
		return fmt.Errorf("invalid ID format: contains unsafe characters")
	}
	return nil
}
