package feed

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// Probe reads source metadata. RSS and Atom sources are parsed with gofeed;
// anything else is treated as an HTML page.
type Probe struct {
	gofeedParser *gofeed.Parser
}

func NewProbe() *Probe {
	return &Probe{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Probe) Run(data []byte) Metadata {
	if metadata, ok := p.feedMetadata(data); ok {
		return metadata
	}
	return p.pageMetadata(data)
}

func (p *Probe) feedMetadata(data []byte) (Metadata, bool) {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom, gofeed.FeedTypeJSON:
	default:
		return Metadata{}, false
	}

	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, false
	}

	metadata := Metadata{
		Title:       strings.TrimSpace(feed.Title),
		Description: strings.TrimSpace(feed.Description),
		Link:        feed.Link,
		Language:    feed.Language,
	}

	if feed.Image != nil {
		metadata.ImageURL = feed.Image.URL
	}

	return metadata, true
}

func (p *Probe) pageMetadata(data []byte) Metadata {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Metadata{}
	}

	metadata := Metadata{
		Title:    strings.TrimSpace(doc.Find("head title").First().Text()),
		Language: strings.TrimSpace(doc.Find("html").AttrOr("lang", "")),
	}

	if description, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		metadata.Description = strings.TrimSpace(description)
	}

	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		metadata.Link = canonical
	}

	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "icon" || rel == "apple-touch-icon" {
				metadata.ImageURL = s.AttrOr("href", "")
				return false
			}
		}
		return true
	})

	return metadata
}
