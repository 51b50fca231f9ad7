package mailparse

import "regexp"

// addressRe matches local-part@domain tokens. This is a deliberate
// heuristic, not an RFC 5322 grammar: it accepts some invalid addresses
// and misses legal but unusual forms (quoted local parts, comments).
var addressRe = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

// ExtractAddresses returns the email addresses found in a raw address
// header value, in order of appearance. The value is header-decoded
// first so encoded display names cannot hide addresses. Empty input
// yields nil.
func ExtractAddresses(raw string) []string {
	if raw == "" {
		return nil
	}
	return addressRe.FindAllString(DecodeHeader(raw), -1)
}
