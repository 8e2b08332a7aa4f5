package orders

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const codePrefix = "ORD"

var codePattern = regexp.MustCompile(`^ORD[A-Z0-9]{8}$`)

// NewCode returns "ORD" followed by the first 8 hex digits of a random UUID, uppercased.
// Uniqueness is enforced by the store; callers retry on collision.
func NewCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return codePrefix + strings.ToUpper(hex[:8])
}

func ValidCode(code string) bool { return codePattern.MatchString(code) }
