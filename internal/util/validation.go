package util

import (
	"net"
	"regexp"
	"strings"
)

var pairCodeRegex = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// NormalizePairCode upper-cases and trims a pairing code for lookup.
func NormalizePairCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidPairCode reports whether code is exactly 8 uppercase letters/digits.
func IsValidPairCode(code string) bool {
	return pairCodeRegex.MatchString(code)
}

func IsValidHostname(hostname string) bool {
	return hostname != "" && len(hostname) <= 255
}

func IsValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
