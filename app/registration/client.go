// Package registration submits channel definitions to a running registry
// over the /addchannel form contract.
package registration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lysyi3m/rss-rules/app/channel"
)

const (
	addChannelPath = "/addchannel"
	maxErrorBody   = 64 << 10
)

// TransportError reports a registration the server did not accept: either
// the request never completed (Err is set) or the server answered with a
// non-2xx status.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registration request failed: %v", e.Err)
	}
	return fmt.Sprintf("registration rejected with status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Client struct {
	server     string
	httpClient *http.Client
}

// NewClient creates a client for the registry at server, e.g.
// "http://localhost:8080".
func NewClient(server string, httpClient *http.Client) *Client {
	return &Client{
		server:     strings.TrimRight(server, "/"),
		httpClient: httpClient,
	}
}

// Register validates the entry locally and posts it. Validation failures are
// returned as *channel.ValidationError without contacting the server.
func (c *Client) Register(ctx context.Context, entry channel.Entry) error {
	if _, err := channel.Validate(entry.Definition()); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+addChannelPath,
		strings.NewReader(Form(entry).Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	slog.Info("Channel registered", "channel", entry.Name, "status", resp.StatusCode)

	return nil
}

// RegisterAll registers entries in order and stops at the first failure.
// It returns how many entries were registered.
func (c *Client) RegisterAll(ctx context.Context, entries []channel.Entry) (int, error) {
	for i, entry := range entries {
		if err := c.Register(ctx, entry); err != nil {
			return i, fmt.Errorf("channel %q: %w", entry.Name, err)
		}
	}
	return len(entries), nil
}

// Form encodes an entry as /addchannel form fields. Patterns use the wire
// form with leading inline flags; zero settings are omitted.
func Form(entry channel.Entry) url.Values {
	form := url.Values{
		"channel_name":        {entry.Name},
		"channel_source":      {entry.Source},
		"item_pattern":        {entry.Patterns.Item.String()},
		"title_pattern":       {entry.Patterns.Title.String()},
		"description_pattern": {entry.Patterns.Description.String()},
		"link_pattern":        {entry.Patterns.Link.String()},
	}

	s := entry.Settings
	if s.RefreshInterval > 0 {
		form.Set("refresh_interval", strconv.Itoa(s.RefreshInterval))
	}
	if s.Timeout > 0 {
		form.Set("timeout", strconv.Itoa(s.Timeout))
	}
	if s.MaxItems > 0 {
		form.Set("max_items", strconv.Itoa(s.MaxItems))
	}
	if s.ExtractContent {
		form.Set("extract_content", "true")
	}
	if s.DecodeEntities {
		form.Set("decode_entities", "true")
	}

	return form
}
