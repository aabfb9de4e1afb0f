package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/rss-rules/app/cfg"
	"github.com/lysyi3m/rss-rules/app/database"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders the channel's stored items as RSS 2.0, in document order.
func (g *Generator) Run(c database.Channel, items []database.Item) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(c.Title, c.Name), 4)
	g.writeElement(&buf, "link", cmp.Or(c.SiteLink, c.Source), 4)
	description := c.Description
	if description == "" {
		description = fmt.Sprintf("Items extracted from %s", c.Source)
	}
	g.writeElement(&buf, "description", description, 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(SelfLink(c.Name))))

	lastBuildDate := time.Now().In(time.Local)
	if c.LastFetchedAt != nil {
		lastBuildDate = c.LastFetchedAt.In(time.Local)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("RSS-Rules/%s", cfg.Get().Version), 4)
	if c.Language != "" {
		g.writeElement(&buf, "language", c.Language, 4)
	}

	if c.ImageURL != "" {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", c.ImageURL, 6)
		g.writeElement(&buf, "title", cmp.Or(c.Title, c.Name), 6)
		g.writeElement(&buf, "link", cmp.Or(c.SiteLink, c.Source), 6)
		buf.WriteString("    </image>\n")
	}

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

// SelfLink returns the public URL of a channel's RSS rendering.
func SelfLink(channelName string) string {
	path := "/channels/" + url.PathEscape(channelName) + "/rss"
	if cfg.Get().BaseUrl != "" {
		return cfg.Get().BaseUrl + path
	}
	return fmt.Sprintf("http://localhost:%s%s", cfg.Get().Port, path)
}

func (g *Generator) writeItem(buf *bytes.Buffer, item database.Item) {
	buf.WriteString("    <item>\n")

	guid := cmp.Or(item.Link, item.ContentHash)
	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(guid)))
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", item.Link, 6)
	g.writeElement(buf, "description", cmp.Or(item.Description, "No description available"), 6)

	if item.Content != "" && item.Content != item.Description {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(item.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", item.CreatedAt.In(time.Local).Format(time.RFC1123Z), 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}
