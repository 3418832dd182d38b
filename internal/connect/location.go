package connect

import (
	"net/url"
	"strconv"
)

// params stripped from the visible location once a redirect has been
// processed; the one-time credential must not survive a reload
var redirectParams = [...]string{markerParam, errorParam, tokenParam, userIDParam, usernameParam, expiresInParam}

// stripMarker returns a copy of the location with the completion
// marker and the one-time exchange parameters removed
func stripMarker(loc *url.URL) *url.URL {
	clean := *loc
	query := clean.Query()
	for _, param := range redirectParams {
		query.Del(param)
	}
	clean.RawQuery = query.Encode()
	return &clean
}

// sameLocation reports whether the stored return location points at
// the current location, ignoring the redirect parameters; only a
// materially different target is worth a navigation
func sameLocation(returnTo string, current *url.URL) bool {
	target, err := url.Parse(returnTo)
	if err != nil {
		return true // unusable target, stay in place
	}

	clean := stripMarker(current)
	if target.Host != "" && clean.Host != "" && target.Host != clean.Host {
		return false
	}
	targetPath := target.Path
	if targetPath == "" {
		targetPath = "/"
	}
	currentPath := clean.Path
	if currentPath == "" {
		currentPath = "/"
	}
	return targetPath == currentPath && target.Query().Encode() == clean.Query().Encode()
}

func parseExpiresIn(value string) int64 {
	if value == "" {
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
