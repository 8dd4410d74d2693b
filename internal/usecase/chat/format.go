package chat

import (
	"regexp"
	"strings"
)

var (
	boldPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	linkPattern    = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	bulletPattern  = regexp.MustCompile(`(?m)^(\s*)[-+]\s+`)
)

// FormatForChannel rewrites Markdown into the chat-app dialect: single
// asterisk bold, headings as bold lines, links as "text (url)".
func FormatForChannel(text string) string {
	text = boldPattern.ReplaceAllString(text, "*$1*")
	text = headingPattern.ReplaceAllString(text, "*$1*")
	text = linkPattern.ReplaceAllString(text, "$1 ($2)")
	text = bulletPattern.ReplaceAllString(text, "$1• ")
	return strings.TrimSpace(text)
}
