package speech

import "regexp"

// CodeBlockPlaceholder replaces fenced code when reading a message aloud.
const CodeBlockPlaceholder = "Code block"

var (
	fencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// SpeakableText strips markdown that does not read well: fenced code blocks
// become a placeholder and links keep only their label.
func SpeakableText(content string) string {
	text := fencedCodePattern.ReplaceAllLiteralString(content, CodeBlockPlaceholder)
	return markdownLinkPattern.ReplaceAllString(text, "$1")
}
