package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
	"github.com/lysyi3m/rss-rules/app/feed"
	"github.com/lysyi3m/rss-rules/app/metrics"
	"github.com/lysyi3m/rss-rules/app/tasks"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Registration results recorded in the registrations metric.
const (
	resultCreated   = "created"
	resultInvalid   = "invalid"
	resultDuplicate = "duplicate"
	resultError     = "error"
)

// Form fields of POST /addchannel, in the order they are checked.
var registrationFields = []struct {
	key   string
	field channel.Field
}{
	{"channel_name", channel.FieldName},
	{"channel_source", channel.FieldSource},
	{"item_pattern", channel.FieldItem},
	{"title_pattern", channel.FieldTitle},
	{"description_pattern", channel.FieldDescription},
	{"link_pattern", channel.FieldLink},
}

func NewHandler(channelRepo ChannelRepository, itemRepo ItemRepository,
	compiled *channel.Cache, feedCache FeedCache, cacheTTL time.Duration,
	scheduler tasks.TaskSchedulerInterface, m *metrics.Metrics) *Handler {
	return &Handler{
		channelRepo: channelRepo,
		itemRepo:    itemRepo,
		generator:   feed.NewGenerator(),
		compiled:    compiled,
		feedCache:   feedCache,
		cacheTTL:    cacheTTL,
		scheduler:   scheduler,
		metrics:     m,
	}
}

// AddChannel registers a channel from a form-encoded request and queues its
// first poll.
func (h *Handler) AddChannel(c *gin.Context) {
	values := make(map[channel.Field]string, len(registrationFields))
	for _, f := range registrationFields {
		value, ok := c.GetPostForm(f.key)
		if !ok {
			h.rejectRegistration(c, http.StatusBadRequest, resultInvalid, errorResponse{
				Error: fmt.Sprintf("missing form field %s", f.key),
				Field: f.key,
				Kind:  "missing_form_field",
			})
			return
		}
		values[f.field] = value
	}

	def := channel.Definition{
		Name:               values[channel.FieldName],
		Source:             values[channel.FieldSource],
		ItemPattern:        channel.ParsePattern(values[channel.FieldItem]),
		TitlePattern:       channel.ParsePattern(values[channel.FieldTitle]),
		LinkPattern:        channel.ParsePattern(values[channel.FieldLink]),
		DescriptionPattern: channel.ParsePattern(values[channel.FieldDescription]),
	}

	if _, err := channel.Validate(def); err != nil {
		resp := errorResponse{Error: err.Error(), Kind: "invalid"}

		var vErr *channel.ValidationError
		if errors.As(err, &vErr) {
			resp.Field = string(vErr.Field)
			resp.Kind = vErr.KindName()
		}

		slog.Debug("Channel registration rejected", "channel", def.Name, "field", resp.Field, "kind", resp.Kind)
		h.rejectRegistration(c, http.StatusBadRequest, resultInvalid, resp)
		return
	}

	settings, errResp := parseSettings(c)
	if errResp != nil {
		h.rejectRegistration(c, http.StatusBadRequest, resultInvalid, *errResp)
		return
	}

	created, err := h.channelRepo.CreateChannel(def, settings)
	if errors.Is(err, database.ErrDuplicateChannel) {
		h.rejectRegistration(c, http.StatusConflict, resultDuplicate, errorResponse{
			Error: fmt.Sprintf("channel %q already exists", def.Name),
			Field: "channel_name",
			Kind:  "duplicate",
		})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "create_channel", "channel", def.Name, "error", err)
		h.rejectRegistration(c, http.StatusInternalServerError, resultError, errorResponse{
			Error: "failed to store channel",
			Kind:  "storage",
		})
		return
	}

	h.metrics.RegistrationsTotal.WithLabelValues(resultCreated).Inc()
	slog.Info("Channel registered", "channel", created.Name, "source", created.Source)

	if err := h.scheduler.RefreshChannel(created.Name); err != nil {
		slog.Warn("Failed to enqueue first poll", "channel", created.Name, "error", err)
	}

	c.JSON(http.StatusCreated, gin.H{"channel": newChannelResponse(created)})
}

func (h *Handler) rejectRegistration(c *gin.Context, status int, result string, resp errorResponse) {
	h.metrics.RegistrationsTotal.WithLabelValues(result).Inc()
	c.JSON(status, resp)
}

// parseSettings reads the optional polling settings of a registration.
func parseSettings(c *gin.Context) (channel.Settings, *errorResponse) {
	var settings channel.Settings

	ints := []struct {
		key string
		dst *int
	}{
		{"refresh_interval", &settings.RefreshInterval},
		{"timeout", &settings.Timeout},
		{"max_items", &settings.MaxItems},
	}
	for _, f := range ints {
		raw := c.PostForm(f.key)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return settings, &errorResponse{
				Error: fmt.Sprintf("%s must be a non-negative integer", f.key),
				Field: f.key,
				Kind:  "invalid_setting",
			}
		}
		*f.dst = value
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"extract_content", &settings.ExtractContent},
		{"decode_entities", &settings.DecodeEntities},
	}
	for _, f := range bools {
		raw := c.PostForm(f.key)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return settings, &errorResponse{
				Error: fmt.Sprintf("%s must be a boolean", f.key),
				Field: f.key,
				Kind:  "invalid_setting",
			}
		}
		*f.dst = value
	}

	return settings.WithDefaults(), nil
}

func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.channelRepo.ListChannels()
	if err != nil {
		slog.Error("Database error", "operation", "list_channels", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	resp := make([]channelResponse, 0, len(channels))
	for i := range channels {
		resp = append(resp, newChannelResponse(&channels[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"channels": resp,
		"total":    len(resp),
	})
}

func (h *Handler) GetChannel(c *gin.Context) {
	ch, ok := h.lookupChannel(c)
	if !ok {
		return
	}

	details := gin.H{"channel": newChannelResponse(ch)}

	if stats, err := h.itemRepo.GetItemStats(ch.ID); err == nil {
		details["items"] = gin.H{
			"total":     stats.Total,
			"extracted": stats.Extracted,
			"failed":    stats.Failed,
		}
	} else {
		slog.Warn("Failed to get item stats", "channel", ch.Name, "error", err)
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) GetItems(c *gin.Context) {
	ch, ok := h.lookupChannel(c)
	if !ok {
		return
	}

	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	items, err := h.itemRepo.GetItems(ch.ID, offset, limit, c.Query("filter"))
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "channel", ch.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel": ch.Name,
		"offset":  offset,
		"limit":   limit,
		"items":   newItemResponses(items),
	})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return value, nil
}

// GetRSS renders the channel's stored items as RSS 2.0.
func (h *Handler) GetRSS(c *gin.Context) {
	name := c.Param("name")
	ctx := c.Request.Context()

	if h.feedCache != nil {
		rss, found, err := h.feedCache.GetFeed(ctx, name)
		if err != nil {
			slog.Warn("Feed cache read failed", "channel", name, "error", err)
		}
		if found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(rss))
			return
		}
	}

	ch, ok := h.lookupChannel(c)
	if !ok {
		return
	}

	items, err := h.itemRepo.GetItems(ch.ID, 0, ch.Settings.MaxItems, "")
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "channel", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*ch, items)
	if err != nil {
		slog.Error("RSS generation error", "channel", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if h.feedCache != nil {
		if err := h.feedCache.SetFeed(ctx, name, rss, h.cacheTTL); err != nil {
			slog.Warn("Feed cache write failed", "channel", name, "error", err)
		}
		c.Header("X-Cache", "MISS")
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", ch.UpdatedAt.Format(time.RFC3339))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(rss))
}

func (h *Handler) RefreshChannel(c *gin.Context) {
	ch, ok := h.lookupChannel(c)
	if !ok {
		return
	}

	if err := h.scheduler.RefreshChannel(ch.Name); err != nil {
		slog.Error("Error enqueueing refresh", "channel", ch.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue refresh",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Refresh enqueued",
		"channel": ch.Name,
	})
}

// DeleteChannel removes a channel with its items.
func (h *Handler) DeleteChannel(c *gin.Context) {
	name := c.Param("name")

	deleted, err := h.channelRepo.DeleteChannel(name)
	if err != nil {
		slog.Error("Database error", "operation", "delete_channel", "channel", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	h.compiled.Delete(name)
	if h.feedCache != nil {
		if err := h.feedCache.InvalidateFeed(c.Request.Context(), name); err != nil {
			slog.Warn("Failed to invalidate cached feed", "channel", name, "error", err)
		}
	}

	slog.Info("Channel deleted", "channel", name)

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": name})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.channelRepo.GetChannelCount(); err == nil {
		health["channels"] = count
	}

	health["compiled_channels"] = h.compiled.Count()

	if h.feedCache != nil {
		health["cache"] = h.feedCache.Health(c.Request.Context())
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) lookupChannel(c *gin.Context) (*database.Channel, bool) {
	name := c.Param("name")

	ch, err := h.channelRepo.GetChannel(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_channel", "channel", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if ch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return nil, false
	}

	return ch, true
}
