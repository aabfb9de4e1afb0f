package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
	"github.com/lysyi3m/rss-rules/app/feed"
	"github.com/lysyi3m/rss-rules/app/metrics"
	"github.com/lysyi3m/rss-rules/app/tasks"
)

type GeneratorInterface interface {
	Run(c database.Channel, items []database.Item) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type ChannelRepository interface {
	CreateChannel(def channel.Definition, settings channel.Settings) (*database.Channel, error)
	GetChannel(name string) (*database.Channel, error)
	ListChannels() ([]database.Channel, error)
	GetChannelCount() (int, error)
	DeleteChannel(name string) (bool, error)
}

type ItemRepository interface {
	GetItems(channelID string, offset, limit int, filter string) ([]database.Item, error)
	GetItemStats(channelID string) (database.ItemStats, error)
}

// FeedCache holds rendered RSS documents. Nil disables caching.
type FeedCache interface {
	GetFeed(ctx context.Context, channelName string) (string, bool, error)
	SetFeed(ctx context.Context, channelName, rss string, ttl time.Duration) error
	InvalidateFeed(ctx context.Context, channelName string) error
	Health(ctx context.Context) map[string]interface{}
}

type Handler struct {
	channelRepo ChannelRepository
	itemRepo    ItemRepository
	generator   GeneratorInterface
	compiled    *channel.Cache
	feedCache   FeedCache
	cacheTTL    time.Duration
	scheduler   tasks.TaskSchedulerInterface
	metrics     *metrics.Metrics
}

// errorResponse is the body of every 4xx reply from /addchannel.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Kind  string `json:"kind"`
}

type channelResponse struct {
	Name          string           `json:"name"`
	Source        string           `json:"source"`
	Patterns      patternsResponse `json:"patterns"`
	Settings      channel.Settings `json:"settings"`
	Title         string           `json:"title,omitempty"`
	Description   string           `json:"description,omitempty"`
	SiteLink      string           `json:"site_link,omitempty"`
	ImageURL      string           `json:"image_url,omitempty"`
	Language      string           `json:"language,omitempty"`
	IsBroken      bool             `json:"is_broken"`
	LastError     string           `json:"last_error,omitempty"`
	LastFetchedAt *time.Time       `json:"last_fetched_at"`
	NextFetchAt   *time.Time       `json:"next_fetch_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// patternsResponse carries patterns in wire form, leading inline flags
// included.
type patternsResponse struct {
	Item        string `json:"item"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

type itemResponse struct {
	Position    int       `json:"position"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	Content     string    `json:"content,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newChannelResponse(c *database.Channel) channelResponse {
	return channelResponse{
		Name:   c.Name,
		Source: c.Source,
		Patterns: patternsResponse{
			Item:        c.Patterns.Item.String(),
			Title:       c.Patterns.Title.String(),
			Link:        c.Patterns.Link.String(),
			Description: c.Patterns.Description.String(),
		},
		Settings:      c.Settings,
		Title:         c.Title,
		Description:   c.Description,
		SiteLink:      c.SiteLink,
		ImageURL:      c.ImageURL,
		Language:      c.Language,
		IsBroken:      c.IsBroken,
		LastError:     c.LastError,
		LastFetchedAt: c.LastFetchedAt,
		NextFetchAt:   c.NextFetchAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func newItemResponses(items []database.Item) []itemResponse {
	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, itemResponse{
			Position:    item.Position,
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			CreatedAt:   item.CreatedAt,
		})
	}
	return resp
}
