package utils

import "strings"

// Slugify turns a display name like "Spay & Neuter" into "spay-and-neuter".
// The result is stable for a given name, so it doubles as the catalog id.
func Slugify(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range s {
		isKeep := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isKeep {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
