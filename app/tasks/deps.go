package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
	"github.com/lysyi3m/rss-rules/app/feed"
	"github.com/lysyi3m/rss-rules/app/metrics"
	"github.com/lysyi3m/rss-rules/app/publisher"
)

// Deps are the collaborators shared by all tasks.
type Deps struct {
	Channels         ChannelRepository
	Items            ItemRepository
	Compiled         *channel.Cache
	Fetcher          *feed.Fetcher
	Probe            *feed.Probe
	ContentExtractor *feed.ContentExtractor
	Publisher        publisher.Publisher
	FeedCache        FeedCache // optional
	Metrics          *metrics.Metrics
	DefaultRefresh   time.Duration
}

func (d *Deps) refreshInterval(settings channel.Settings) time.Duration {
	if settings.RefreshInterval > 0 {
		return time.Duration(settings.RefreshInterval) * time.Second
	}
	return d.DefaultRefresh
}

// validated returns the compiled form of a stored channel, compiling it on
// first use or when the stored definition no longer matches the cached one.
func (d *Deps) validated(c *database.Channel) (*channel.ValidatedChannel, error) {
	def := c.Definition()

	if cached, err := d.Compiled.Get(c.Name); err == nil && cached.Definition() == def {
		return cached, nil
	}

	return d.Compiled.Load(def)
}

func (d *Deps) invalidateFeed(ctx context.Context, channelName string) {
	if d.FeedCache == nil {
		return
	}
	if err := d.FeedCache.InvalidateFeed(ctx, channelName); err != nil {
		slog.Warn("Failed to invalidate cached feed", "channel", channelName, "error", err)
	}
}
