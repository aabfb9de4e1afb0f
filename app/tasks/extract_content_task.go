package tasks

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/rss-rules/app/database"
)

// ExtractContentTask downloads the pages linked from a channel's items and
// stores their readable content.
type ExtractContentTask struct {
	Task
	deps *Deps
}

func NewExtractContentTask(channelName string, deps *Deps) *ExtractContentTask {
	return &ExtractContentTask{
		Task: NewTask(TaskTypeExtractContent, channelName),
		deps: deps,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c, err := t.deps.Channels.GetChannel(t.ChannelName)
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	if c == nil || !c.Settings.ExtractContent {
		slog.Debug("Content extraction disabled for channel", "channel", t.ChannelName)
		return nil
	}

	items, err := t.deps.Items.GetItemsForExtraction(c.ID, c.Settings.MaxItems)
	if err != nil {
		return fmt.Errorf("failed to get items for content extraction: %w", err)
	}

	if len(items) == 0 {
		slog.Debug("No items need content extraction", "channel", t.ChannelName)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		content, err := t.extractContentForItem(ctx, c, item)
		if err != nil {
			slog.Error("Failed to extract content for item", "item_id", item.ID, "url", item.Link, "error", err)
			errorCount++

			if err := t.deps.Items.UpdateExtractedContent(item.ID, "", database.ExtractionFailed, err.Error()); err != nil {
				slog.Error("Failed to update content extraction status", "item_id", item.ID, "error", err)
			}
			continue
		}

		if err := t.deps.Items.UpdateExtractedContent(item.ID, content, database.ExtractionSuccess, ""); err != nil {
			return fmt.Errorf("failed to store extracted content: %w", err)
		}
		successCount++
	}

	if successCount > 0 {
		t.deps.invalidateFeed(ctx, c.Name)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"channel", t.ChannelName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractContentForItem(ctx context.Context, c *database.Channel, item database.ItemForExtraction) (string, error) {
	articleURL, err := resolveLink(c.Source, item.Link)
	if err != nil {
		return "", err
	}

	doc, err := t.deps.Fetcher.Run(ctx, articleURL, time.Duration(c.Settings.Timeout)*time.Second)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article content: %w", err)
	}

	if !strings.Contains(strings.ToLower(doc.ContentType), "text/html") {
		return "", fmt.Errorf("content type is not HTML: %s", doc.ContentType)
	}

	content, err := t.deps.ContentExtractor.Run(doc.Data, articleURL)
	if err != nil {
		return "", err
	}

	slog.Debug("Content extracted successfully", "item_id", item.ID, "url", articleURL, "content_length", len(content))

	return content, nil
}

// resolveLink builds the fetch URL for a captured link: trimmed and
// entity-decoded, then resolved against the channel source.
func resolveLink(source, link string) (string, error) {
	ref, err := url.Parse(html.UnescapeString(strings.TrimSpace(link)))
	if err != nil {
		return "", fmt.Errorf("invalid item link %q: %w", link, err)
	}

	base, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid channel source %q: %w", source, err)
	}

	return base.ResolveReference(ref).String(), nil
}
