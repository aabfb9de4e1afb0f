package feed

import (
	"html"
	"strings"

	"github.com/lysyi3m/rss-rules/app/channel"
)

// DecodeEntities unescapes HTML entities in extracted fields and trims
// surrounding whitespace.
func DecodeEntities(item channel.Item) channel.Item {
	return channel.Item{
		Title:       strings.TrimSpace(html.UnescapeString(item.Title)),
		Link:        strings.TrimSpace(html.UnescapeString(item.Link)),
		Description: strings.TrimSpace(html.UnescapeString(item.Description)),
	}
}
