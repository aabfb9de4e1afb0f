package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
)

// SyncChannelDefinitionTask registers a channel from the definitions file
// unless a channel with that name is already stored. Stored channels are
// never modified.
type SyncChannelDefinitionTask struct {
	Task
	entry channel.Entry
	deps  *Deps
}

func NewSyncChannelDefinitionTask(entry channel.Entry, deps *Deps) *SyncChannelDefinitionTask {
	return &SyncChannelDefinitionTask{
		Task:  NewTask(TaskTypeSyncChannelDefinition, entry.Name),
		entry: entry,
		deps:  deps,
	}
}

func (t *SyncChannelDefinitionTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	existing, err := t.deps.Channels.GetChannel(t.entry.Name)
	if err != nil {
		return fmt.Errorf("failed to check existing channel: %w", err)
	}
	if existing != nil {
		slog.Debug("Channel already registered, skipping", "channel", t.entry.Name)
		return nil
	}

	if _, err := channel.Validate(t.entry.Definition()); err != nil {
		return permanent(fmt.Errorf("invalid channel definition: %w", err))
	}

	_, err = t.deps.Channels.CreateChannel(t.entry.Definition(), t.entry.Settings.WithDefaults())
	if errors.Is(err, database.ErrDuplicateChannel) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to register channel: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"channel", t.ChannelName,
		"duration", t.GetDuration())

	return nil
}
