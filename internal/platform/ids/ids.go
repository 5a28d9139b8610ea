package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh record identifier.
func New() string {
	return uuid.NewString()
}

// Suffix returns an uppercase hex fragment of length n (max 32), used for
// human-facing policy numbers.
func Suffix(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}
