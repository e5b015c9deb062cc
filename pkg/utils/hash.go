package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashFields hashes a composite key built from the given parts, normalized
// to lower case so cache keys ignore caller-side casing.
func HashFields(parts ...string) string {
	return HashString(strings.ToLower(strings.Join(parts, "|")))
}
