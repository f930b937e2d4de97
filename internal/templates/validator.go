package templates

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateProjectName checks if a project name is valid.
// Project names allow letters, digits, hyphens and underscores and start
// with a letter.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}

	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return fmt.Errorf("invalid project name %q: contains invalid character %q", name, r)
		}
	}

	if !unicode.IsLetter(rune(name[0])) {
		return fmt.Errorf("invalid project name %q: must start with a letter", name)
	}

	return nil
}

// Hostname derives a host name from a project name: lowercase, with
// underscores turned into hyphens.
func Hostname(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}
