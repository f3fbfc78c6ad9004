package session

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent reduces a raw User-Agent header to a short human-readable
// device label like "Chrome on Mac OS X". Unparseable parts fall back to
// "Unknown Browser"/"Unknown OS" so the result is always presentable.
func ParseUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	osName := ua.OS()
	if osName == "" {
		osName = ua.Platform()
	}
	if osName == "" {
		osName = "Unknown OS"
	}

	return browser + " on " + osName
}
