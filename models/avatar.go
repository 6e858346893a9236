package models

import (
	"net/url"
	"regexp"
	"strings"
)

const FallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

// AvatarSize is the edge length requested from providers that resize on the fly.
const AvatarSize = "256"

var googleSizeSuffix = regexp.MustCompile(`=s\d+(-c)?$`)

// NormalizeAvatarURL turns whatever a provider or client handed us into an
// absolute https URL, falling back to the placeholder for unusable input.
func NormalizeAvatarURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FallbackAvatar
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return FallbackAvatar
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLocalHost(u.Hostname()) {
			u.Scheme = "https"
		}
	default:
		return FallbackAvatar
	}

	if strings.HasSuffix(u.Hostname(), "googleusercontent.com") {
		if googleSizeSuffix.MatchString(u.Path) {
			u.Path = googleSizeSuffix.ReplaceAllString(u.Path, "=s"+AvatarSize+"-c")
			u.RawPath = ""
		}
	}
	return u.String()
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
