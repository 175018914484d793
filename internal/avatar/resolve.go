package avatar

import (
	"net/url"
	"strings"
)

// VibatarHost serves avatar models addressed by username.
const VibatarHost = "vibatar.ai"

// UsernameToVibatarURL maps "alice" or "alice/robot" to the hosted GLB.
func UsernameToVibatarURL(username string) string {
	return "https://" + VibatarHost + "/" + username + ".glb"
}

// ResolveSource returns src unchanged when it is already a URL and treats
// anything else as a username.
func ResolveSource(src string) string {
	if strings.HasPrefix(src, "http") {
		return src
	}
	return UsernameToVibatarURL(src)
}

// IsAllowedDomain reports whether the host of rawURL equals one of the
// allowed domains or is a subdomain of one. Unparseable input is refused.
func IsAllowedDomain(rawURL string, allowed []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, domain := range allowed {
		domain = strings.ToLower(strings.TrimPrefix(domain, "."))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// hostOf is used in log lines; it never fails.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
