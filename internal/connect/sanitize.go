package connect

import (
	"html"
	"strings"

	"github.com/coolspring8/go-lolhtml"
	log "github.com/sirupsen/logrus"
)

const maxMessageLength = 300

// SanitizeMessage flattens a server-supplied message to plain text:
// markup is stripped (keeping the inner text), entities are decoded
// and the result is length-capped before it is shown to the user
func SanitizeMessage(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return ""
	}

	if strings.ContainsRune(message, '<') {
		result, err := lolhtml.RewriteString(
			message,
			&lolhtml.Handlers{
				ElementContentHandler: []lolhtml.ElementContentHandler{
					{
						Selector: "*",
						ElementHandler: func(e *lolhtml.Element) lolhtml.RewriterDirective {
							e.RemoveAndKeepContent()
							return lolhtml.Continue
						},
					},
				},
			},
		)
		if err != nil {
			log.Warnf("connect: failed to strip markup from message: %v", err)
		} else {
			message = result
		}
	}

	message = strings.TrimSpace(html.UnescapeString(message))
	if runes := []rune(message); len(runes) > maxMessageLength {
		message = string(runes[:maxMessageLength]) + "…"
	}
	return message
}
