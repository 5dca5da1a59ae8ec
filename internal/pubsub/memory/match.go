package memory

import "strings"

// matchSubject reports whether a subject matches a pattern. NATS-style
// wildcards are supported: "*" matches a single token, ">" matches one or
// more trailing tokens.
func matchSubject(pattern, subject string) bool {
	if pattern == "" || subject == "" {
		return false
	}

	patternParts := strings.Split(pattern, ".")
	subjectParts := strings.Split(subject, ".")

	for i, p := range patternParts {
		if p == ">" {
			return i < len(subjectParts)
		}
		if i >= len(subjectParts) {
			return false
		}
		if p != "*" && p != subjectParts[i] {
			return false
		}
	}
	return len(patternParts) == len(subjectParts)
}
