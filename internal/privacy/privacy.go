// Package privacy strips credentials from values before they are logged.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

// credentialPattern matches user:password@ in URLs the parser rejects.
var credentialPattern = regexp.MustCompile(`//[^/@\s]+@`)

// RedactURL removes userinfo from a broker or database URL while keeping
// scheme, host, port and path for debugging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return credentialPattern.ReplaceAllString(raw, "//[redacted]@")
	}
	if u.User == nil {
		return raw
	}
	u.User = url.User("[redacted]")
	return strings.Replace(u.String(), "%5Bredacted%5D", "[redacted]", 1)
}
