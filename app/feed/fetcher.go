package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

const maxBodySize = 10 << 20

// StatusError reports a non-200 response from a source.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Run downloads url and decodes the body to UTF-8 using the charset from the
// Content-Type header or the document's own declaration.
func (f *Fetcher) Run(ctx context.Context, url string, timeout time.Duration) (*Document, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	decoded, charset, err := decodeCharset(data, contentType)
	if err != nil {
		return nil, err
	}

	return &Document{
		URL:         url,
		ContentType: contentType,
		Charset:     charset,
		Data:        decoded,
	}, nil
}

var (
	xmlEncoding = regexp.MustCompile(`(?i)<\?xml[^>]*encoding=["']([\w.:-]+)["']`)
	metaCharset = regexp.MustCompile(`(?i)<meta[^>]*charset=["']?([\w.:-]+)`)
)

// decodeCharset converts data to UTF-8. The header charset wins over a
// declaration inside the first kilobyte of the document.
func decodeCharset(data []byte, contentType string) ([]byte, string, error) {
	charset := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		charset = params["charset"]
	}

	if charset == "" {
		head := data[:min(len(data), 1024)]
		if m := xmlEncoding.FindSubmatch(head); m != nil {
			charset = string(m[1])
		} else if m := metaCharset.FindSubmatch(head); m != nil {
			charset = string(m[1])
		}
	}

	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return data, "utf-8", nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		slog.Debug("Unknown charset, using raw bytes", "charset", charset)
		return data, "utf-8", nil
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s body: %w", charset, err)
	}

	return decoded, charset, nil
}
