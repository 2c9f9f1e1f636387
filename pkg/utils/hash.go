package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:16])
}

// NormalizeQuery lowercases and collapses whitespace so that cache keys and
// intent matching are insensitive to formatting.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
