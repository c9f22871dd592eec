// Package messaging defines standard subject names for the mailtap event bus.
package messaging

import (
	"strings"
	"unicode"
)

// Subject constants for the mailtap event bus.
// Follow the pattern: {domain}.{action}
const (
	// Mail subjects - published after a stored email is handed to a caller
	SubjectMailDelivered = "mail.delivered" // Append .{recipient token} for a specific recipient
)

// HeaderEventID carries the event identifier on published messages.
const HeaderEventID = "Mailtap-Event-Id"

// MailDeliveredSubject returns the subject for deliveries to recipient.
// Example: mail.delivered.feed1@example_com
func MailDeliveredSubject(recipient string) string {
	return SubjectMailDelivered + "." + SubjectToken(recipient)
}

// SubjectToken makes s usable as a single subject token by replacing
// separators, wildcards and whitespace with underscores.
func SubjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.', r == '*', r == '>', unicode.IsSpace(r):
			return '_'
		default:
			return r
		}
	}, s)
}
