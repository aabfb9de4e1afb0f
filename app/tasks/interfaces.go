package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to manage background processing.
//
//	scheduler := NewScheduler(deps, entries)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.RefreshChannel("ubuntu")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RefreshChannel(name string) error
}

type ChannelRepository interface {
	GetChannel(name string) (*database.Channel, error)
	ListChannels() ([]database.Channel, error)
	GetChannelsDueForRefresh(now time.Time) ([]database.Channel, error)
	CreateChannel(def channel.Definition, settings channel.Settings) (*database.Channel, error)
	UpdateChannelMetadata(channelID string, meta database.Metadata) error
	MarkFetched(channelID string, nextFetch time.Time) error
	MarkBroken(channelID string, reason string, nextFetch time.Time) error
}

type ItemRepository interface {
	ReplaceItems(channelID string, items []channel.Item, extract bool) (int, error)
	GetItemsForExtraction(channelID string, limit int) ([]database.ItemForExtraction, error)
	UpdateExtractedContent(itemID, content, status, errorMsg string) error
}

// FeedCache drops rendered feeds whose items changed.
type FeedCache interface {
	InvalidateFeed(ctx context.Context, channelName string) error
}
