package coordinator

import (
	"regexp"
	"strings"
)

// DefaultBannedKeywords reject a source and blacklist its sender
var DefaultBannedKeywords = []string{"porn", "sex", "sexy", "adult"}

// captionSeparator splits "<url> * <caption>"
const captionSeparator = " * "

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// parseRequest returns the first http(s) URL of text and the custom caption
// following " * ", if any.
func parseRequest(text string) (url, caption string, ok bool) {
	head := text
	if i := strings.Index(text, captionSeparator); i >= 0 {
		head = text[:i]
		caption = strings.TrimSpace(text[i+len(captionSeparator):])
	}

	url = urlPattern.FindString(head)
	if url == "" {
		// the caption separator may sit inside a message with the URL after it
		url = urlPattern.FindString(text)
		caption = ""
	}
	if url == "" {
		return "", "", false
	}
	return url, caption, true
}

// bannedKeyword returns the first keyword contained in url, ignoring case
func bannedKeyword(url string, keywords []string) (string, bool) {
	lower := strings.ToLower(url)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}
