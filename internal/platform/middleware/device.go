package middleware

import (
	"strings"

	"github.com/mssola/useragent"
)

// deviceName reduces a User-Agent to "Browser on OS" for request logs, so the
// raw header never reaches them.
func deviceName(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	os := ua.OS()
	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			os = platform
		}
	}
	if browser == "" {
		browser = "unknown browser"
	}
	if os == "" {
		os = "unknown OS"
	}
	return browser + " on " + os
}
