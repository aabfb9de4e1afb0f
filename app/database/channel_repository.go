package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-rules/app/channel"
)

// ChannelRepository handles database operations for channels
type ChannelRepository struct {
	db *DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

const channelColumns = `
	id, name, source,
	item_pattern, item_flags, title_pattern, title_flags,
	link_pattern, link_flags, description_pattern, description_flags,
	refresh_interval, timeout, max_items, extract_content, decode_entities,
	title, description, site_link, image_url, language,
	is_broken, last_error, last_fetched_at, next_fetch_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*Channel, error) {
	var c Channel
	var itemFlags, titleFlags, linkFlags, descriptionFlags uint8

	err := row.Scan(
		&c.ID, &c.Name, &c.Source,
		&c.Patterns.Item.Body, &itemFlags, &c.Patterns.Title.Body, &titleFlags,
		&c.Patterns.Link.Body, &linkFlags, &c.Patterns.Description.Body, &descriptionFlags,
		&c.Settings.RefreshInterval, &c.Settings.Timeout, &c.Settings.MaxItems,
		&c.Settings.ExtractContent, &c.Settings.DecodeEntities,
		&c.Title, &c.Description, &c.SiteLink, &c.ImageURL, &c.Language,
		&c.IsBroken, &c.LastError, &c.LastFetchedAt, &c.NextFetchAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Patterns.Item.Flags = channel.FlagSet(itemFlags)
	c.Patterns.Title.Flags = channel.FlagSet(titleFlags)
	c.Patterns.Link.Flags = channel.FlagSet(linkFlags)
	c.Patterns.Description.Flags = channel.FlagSet(descriptionFlags)

	return &c, nil
}

// CreateChannel stores a new channel. The definition must already be
// validated. Returns ErrDuplicateChannel when the name is taken.
func (r *ChannelRepository) CreateChannel(def channel.Definition, settings channel.Settings) (*Channel, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	_, err := r.db.Exec(`
		INSERT INTO channels (
			id, name, source,
			item_pattern, item_flags, title_pattern, title_flags,
			link_pattern, link_flags, description_pattern, description_flags,
			refresh_interval, timeout, max_items, extract_content, decode_entities,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, def.Name, def.Source,
		def.ItemPattern.Body, uint8(def.ItemPattern.Flags), def.TitlePattern.Body, uint8(def.TitlePattern.Flags),
		def.LinkPattern.Body, uint8(def.LinkPattern.Flags), def.DescriptionPattern.Body, uint8(def.DescriptionPattern.Flags),
		settings.RefreshInterval, settings.Timeout, settings.MaxItems, settings.ExtractContent, settings.DecodeEntities,
		now, now)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, def.Name)
		}
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return r.GetChannel(def.Name)
}

// GetChannel retrieves a channel by name, returning nil when it does not exist
func (r *ChannelRepository) GetChannel(name string) (*Channel, error) {
	c, err := scanChannel(r.db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return c, nil
}

func (r *ChannelRepository) ListChannels() ([]Channel, error) {
	return r.queryChannels(`SELECT ` + channelColumns + ` FROM channels ORDER BY name`)
}

// GetChannelsDueForRefresh returns channels never fetched or whose next
// fetch time has passed, oldest first
func (r *ChannelRepository) GetChannelsDueForRefresh(now time.Time) ([]Channel, error) {
	return r.queryChannels(`
		SELECT `+channelColumns+`
		FROM channels
		WHERE next_fetch_at IS NULL OR next_fetch_at <= ?
		ORDER BY next_fetch_at IS NOT NULL, next_fetch_at
		LIMIT 50
	`, now.UTC())
}

func (r *ChannelRepository) queryChannels(query string, args ...any) ([]Channel, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}

	return channels, nil
}

func (r *ChannelRepository) GetChannelCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM channels").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get channel count: %w", err)
	}
	return count, nil
}

// UpdateChannelMetadata stores what the source says about itself. Empty
// values keep what is already stored.
func (r *ChannelRepository) UpdateChannelMetadata(channelID string, meta Metadata) error {
	_, err := r.db.Exec(`
		UPDATE channels
		SET title = COALESCE(NULLIF(?, ''), title),
		    description = COALESCE(NULLIF(?, ''), description),
		    site_link = COALESCE(NULLIF(?, ''), site_link),
		    image_url = COALESCE(NULLIF(?, ''), image_url),
		    language = COALESCE(NULLIF(?, ''), language),
		    updated_at = ?
		WHERE id = ?
	`, meta.Title, meta.Description, meta.SiteLink, meta.ImageURL, meta.Language, time.Now().UTC(), channelID)

	if err != nil {
		return fmt.Errorf("failed to update channel metadata: %w", err)
	}

	return nil
}

// MarkFetched records a successful pass and clears the broken flag
func (r *ChannelRepository) MarkFetched(channelID string, nextFetch time.Time) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		UPDATE channels
		SET is_broken = 0, last_error = '', last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE id = ?
	`, now, nextFetch.UTC(), now, channelID)

	if err != nil {
		return fmt.Errorf("failed to mark channel fetched: %w", err)
	}

	return nil
}

// MarkBroken flags the channel as broken with the failure reason. Stored
// items are left untouched.
func (r *ChannelRepository) MarkBroken(channelID string, reason string, nextFetch time.Time) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		UPDATE channels
		SET is_broken = 1, last_error = ?, last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE id = ?
	`, reason, now, nextFetch.UTC(), now, channelID)

	if err != nil {
		return fmt.Errorf("failed to mark channel broken: %w", err)
	}

	return nil
}

// DeleteChannel removes a channel and, by cascade, its items. Reports
// whether a channel was deleted.
func (r *ChannelRepository) DeleteChannel(name string) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM channels WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete channel: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}
