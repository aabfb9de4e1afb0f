package database

import (
	"time"

	"github.com/lysyi3m/rss-rules/app/channel"
)

type Channel struct {
	ID            string // Database UUID
	Name          string
	Source        string
	Patterns      channel.Patterns
	Settings      channel.Settings
	Title         string // From source metadata, when the source is a feed or page with a title
	Description   string
	SiteLink      string
	ImageURL      string
	Language      string
	IsBroken      bool
	LastError     string
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Definition rebuilds the extraction definition stored for the channel.
func (c *Channel) Definition() channel.Definition {
	return channel.Entry{Name: c.Name, Source: c.Source, Patterns: c.Patterns}.Definition()
}

type Metadata struct {
	Title       string
	Description string
	SiteLink    string
	ImageURL    string
	Language    string
}

type Item struct {
	ID                      string
	ChannelID               string
	Position                int // Document order within the last extraction pass
	Title                   string
	Link                    string
	Description             string
	ContentHash             string
	Content                 string
	ContentExtractionStatus string // pending, success, failed, skipped
	ContentExtractionError  string
	ContentExtractedAt      *time.Time
	ExtractionAttempts      int
	CreatedAt               time.Time
}

type ItemForExtraction struct {
	ID   string
	Link string
}

type ItemStats struct {
	Total     int
	Extracted int
	Failed    int
}

const (
	ExtractionPending = "pending"
	ExtractionSuccess = "success"
	ExtractionFailed  = "failed"
	ExtractionSkipped = "skipped"
)
