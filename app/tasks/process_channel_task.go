package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
	"github.com/lysyi3m/rss-rules/app/feed"
	"github.com/lysyi3m/rss-rules/app/metrics"
	"github.com/lysyi3m/rss-rules/app/publisher"
)

// ProcessChannelTask polls one channel: fetch the source, run the extractor
// and replace the stored items with the result.
type ProcessChannelTask struct {
	Task
	deps *Deps
}

func NewProcessChannelTask(channelName string, deps *Deps) *ProcessChannelTask {
	return &ProcessChannelTask{
		Task: NewTask(TaskTypeProcessChannel, channelName),
		deps: deps,
	}
}

func (t *ProcessChannelTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c, err := t.deps.Channels.GetChannel(t.ChannelName)
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	if c == nil {
		slog.Debug("Channel no longer exists, skipping", "channel", t.ChannelName)
		return nil
	}

	validated, err := t.deps.validated(c)
	if err != nil {
		t.markBroken(c, err)
		return permanent(fmt.Errorf("stored channel is invalid: %w", err))
	}

	doc, err := t.deps.Fetcher.Run(ctx, c.Source, time.Duration(c.Settings.Timeout)*time.Second)
	if err != nil {
		t.markBroken(c, err)
		return fmt.Errorf("failed to fetch source: %w", err)
	}

	result, err := validated.Extract(doc.Data)
	if err != nil {
		t.markBroken(c, err)
		return permanent(fmt.Errorf("failed to extract items: %w", err))
	}

	items := result.Items
	if c.Settings.DecodeEntities {
		items = make([]channel.Item, len(result.Items))
		for i, item := range result.Items {
			items[i] = feed.DecodeEntities(item)
		}
	}

	stored, err := t.deps.Items.ReplaceItems(c.ID, items, c.Settings.ExtractContent)
	if err != nil {
		t.markBroken(c, err)
		return fmt.Errorf("failed to store items: %w", err)
	}

	t.storeMetadata(c, doc)

	if err := t.deps.Channels.MarkFetched(c.ID, time.Now().Add(t.deps.refreshInterval(c.Settings))); err != nil {
		return fmt.Errorf("failed to update next fetch time: %w", err)
	}

	t.deps.invalidateFeed(ctx, c.Name)

	msg := publisher.NewExtractionMessage(c.Name, c.Source, result)
	msg.Items = items
	if err := t.deps.Publisher.PublishExtraction(ctx, msg); err != nil {
		slog.Warn("Failed to publish extraction", "channel", c.Name, "error", err)
	}

	missing := result.MissingTitle + result.MissingLink + result.MissingDescription
	outcome := metrics.Outcome(len(result.Items), missing)
	t.deps.Metrics.ExtractionsTotal.WithLabelValues(c.Name, outcome).Inc()
	t.deps.Metrics.ExtractedItemsTotal.WithLabelValues(c.Name).Add(float64(len(result.Items)))

	if result.Empty() {
		slog.Info("Item pattern matched nothing", "channel", c.Name, "source", c.Source)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"channel", t.ChannelName,
		"duration", t.GetDuration(),
		"outcome", outcome,
		"items", stored,
		"missing_title", result.MissingTitle,
		"missing_link", result.MissingLink,
		"missing_description", result.MissingDescription)

	return nil
}

func (t *ProcessChannelTask) storeMetadata(c *database.Channel, doc *feed.Document) {
	meta := t.deps.Probe.Run(doc.Data)

	err := t.deps.Channels.UpdateChannelMetadata(c.ID, database.Metadata{
		Title:       meta.Title,
		Description: meta.Description,
		SiteLink:    meta.Link,
		ImageURL:    meta.ImageURL,
		Language:    meta.Language,
	})
	if err != nil {
		slog.Warn("Failed to store channel metadata", "channel", c.Name, "error", err)
	}
}

func (t *ProcessChannelTask) markBroken(c *database.Channel, cause error) {
	t.deps.Metrics.ChannelFailuresTotal.WithLabelValues(c.Name).Inc()

	nextFetch := time.Now().Add(t.deps.refreshInterval(c.Settings))
	if err := t.deps.Channels.MarkBroken(c.ID, cause.Error(), nextFetch); err != nil {
		slog.Error("Failed to mark channel broken", "channel", c.Name, "error", err)
	}
}
