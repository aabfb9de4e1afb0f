package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-rules/app/channel"
)

// ItemRepository handles database operations for channel items
type ItemRepository struct {
	db *DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `
	id, channel_id, position, title, link, description, content_hash, content,
	content_extraction_status, content_extraction_error, content_extracted_at,
	extraction_attempts, created_at`

// ContentHash identifies an item by its title and link.
func ContentHash(item channel.Item) string {
	hash := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return hex.EncodeToString(hash[:])
}

type extractedContent struct {
	content     string
	extractedAt *time.Time
}

// ReplaceItems swaps the channel's stored items for a fresh extraction in a
// single transaction. Items keep their document order. Content already
// extracted for an unchanged item is carried over when extract is true.
func (r *ItemRepository) ReplaceItems(channelID string, items []channel.Item, extract bool) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	carried, err := r.loadExtractedContent(tx, channelID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`DELETE FROM items WHERE channel_id = ?`, channelID); err != nil {
		return 0, fmt.Errorf("failed to delete old items: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO items (
			id, channel_id, position, title, link, description, content_hash,
			content, content_extraction_status, content_extracted_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, item := range items {
		hash := ContentHash(item)

		status := ExtractionSkipped
		content := ""
		var extractedAt *time.Time
		if extract {
			status = ExtractionPending
			if prev, ok := carried[hash]; ok {
				status, content, extractedAt = ExtractionSuccess, prev.content, prev.extractedAt
			}
		}

		_, err := stmt.Exec(uuid.NewString(), channelID, i, item.Title, item.Link, item.Description, hash,
			content, status, extractedAt, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit items: %w", err)
	}

	return len(items), nil
}

func (r *ItemRepository) loadExtractedContent(tx *sql.Tx, channelID string) (map[string]extractedContent, error) {
	rows, err := tx.Query(`
		SELECT content_hash, content, content_extracted_at
		FROM items
		WHERE channel_id = ? AND content_extraction_status = ?
	`, channelID, ExtractionSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to load extracted content: %w", err)
	}
	defer rows.Close()

	carried := make(map[string]extractedContent)
	for rows.Next() {
		var hash string
		var ec extractedContent
		if err := rows.Scan(&hash, &ec.content, &ec.extractedAt); err != nil {
			return nil, fmt.Errorf("failed to scan extracted content: %w", err)
		}
		carried[hash] = ec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating extracted content: %w", err)
	}

	return carried, nil
}

// GetItems returns a page of the channel's items in document order. A
// non-empty filter keeps items whose title contains it, ignoring ASCII case.
func (r *ItemRepository) GetItems(channelID string, offset, limit int, filter string) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE channel_id = ?`
	args := []any{channelID}

	if filter != "" {
		query += ` AND title LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(filter)+"%")
	}

	query += ` ORDER BY position LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.ChannelID, &item.Position, &item.Title, &item.Link, &item.Description,
			&item.ContentHash, &item.Content, &item.ContentExtractionStatus, &item.ContentExtractionError,
			&item.ContentExtractedAt, &item.ExtractionAttempts, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetItemStats returns item counts for a channel
func (r *ItemRepository) GetItemStats(channelID string) (ItemStats, error) {
	var stats ItemStats
	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN content_extraction_status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN content_extraction_status = ? THEN 1 ELSE 0 END), 0)
		FROM items
		WHERE channel_id = ?
	`, ExtractionSuccess, ExtractionFailed, channelID).Scan(&stats.Total, &stats.Extracted, &stats.Failed)

	if err != nil {
		return ItemStats{}, fmt.Errorf("failed to get item stats: %w", err)
	}

	return stats, nil
}

// GetItemsForExtraction returns items still waiting for content extraction,
// in document order
func (r *ItemRepository) GetItemsForExtraction(channelID string, limit int) ([]ItemForExtraction, error) {
	rows, err := r.db.Query(`
		SELECT id, link
		FROM items
		WHERE channel_id = ?
		  AND content_extraction_status = ?
		  AND link != ''
		ORDER BY position
		LIMIT ?
	`, channelID, ExtractionPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for extraction: %w", err)
	}
	defer rows.Close()

	var items []ItemForExtraction
	for rows.Next() {
		var item ItemForExtraction
		if err := rows.Scan(&item.ID, &item.Link); err != nil {
			return nil, fmt.Errorf("failed to scan item for extraction: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items for extraction: %w", err)
	}

	return items, nil
}

// UpdateExtractedContent records the outcome of one content extraction attempt
func (r *ItemRepository) UpdateExtractedContent(itemID, content, status, errorMsg string) error {
	_, err := r.db.Exec(`
		UPDATE items
		SET content = ?, content_extraction_status = ?, content_extraction_error = ?,
		    content_extracted_at = ?, extraction_attempts = extraction_attempts + 1
		WHERE id = ?
	`, content, status, errorMsg, time.Now().UTC(), itemID)

	if err != nil {
		return fmt.Errorf("failed to update extracted content: %w", err)
	}

	return nil
}
