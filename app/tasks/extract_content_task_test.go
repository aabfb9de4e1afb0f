package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
)

func TestExtractContentTask_StoresReadableContent(t *testing.T) {
	env := newTestEnv(t)
	srv := newSourceServer(t)
	c := env.createChannel(t, testDefinition("Ubuntu Planet", srv.URL+"/feed"), channel.Settings{ExtractContent: true})

	require.NoError(t, NewProcessChannelTask("Ubuntu Planet", env.deps).Execute(context.Background()))

	items, err := env.items.GetItems(c.ID, 0, 10, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, database.ExtractionPending, items[0].ContentExtractionStatus)

	env.feedCache.invalidated = nil
	require.NoError(t, NewExtractContentTask("Ubuntu Planet", env.deps).Execute(context.Background()))

	items, err = env.items.GetItems(c.ID, 0, 10, "")
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, database.ExtractionSuccess, item.ContentExtractionStatus, item.Link)
		assert.Contains(t, item.Content, "main content of the article")
	}
	assert.Equal(t, []string{"Ubuntu Planet"}, env.feedCache.invalidated)
}

func TestExtractContentTask_NonHTMLMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	srv := newSourceServer(t)

	c := env.createChannel(t, testDefinition("Self", srv.URL+"/feed"), channel.Settings{ExtractContent: true})

	_, err := env.items.ReplaceItems(c.ID, []channel.Item{{Title: "feed", Link: srv.URL + "/feed"}}, true)
	require.NoError(t, err)

	require.NoError(t, NewExtractContentTask("Self", env.deps).Execute(context.Background()))

	items, err := env.items.GetItems(c.ID, 0, 10, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, database.ExtractionFailed, items[0].ContentExtractionStatus)
	assert.Contains(t, items[0].ContentExtractionError, "not HTML")
	assert.Empty(t, env.feedCache.invalidated)
}

func TestExtractContentTask_DisabledChannel(t *testing.T) {
	env := newTestEnv(t)
	c := env.createChannel(t, testDefinition("Plain", "http://example.com/feed"), channel.Settings{})

	_, err := env.items.ReplaceItems(c.ID, []channel.Item{{Title: "a", Link: "http://example.com/a"}}, false)
	require.NoError(t, err)

	require.NoError(t, NewExtractContentTask("Plain", env.deps).Execute(context.Background()))

	items, err := env.items.GetItems(c.ID, 0, 10, "")
	require.NoError(t, err)
	assert.Equal(t, database.ExtractionSkipped, items[0].ContentExtractionStatus)
}

func TestExtractContentTask_ResolvesCapturedLinks(t *testing.T) {
	env := newTestEnv(t)
	srv := newSourceServer(t)
	c := env.createChannel(t, testDefinition("Habr", srv.URL+"/feed"), channel.Settings{ExtractContent: true})

	_, err := env.items.ReplaceItems(c.ID, []channel.Item{
		{Title: "relative", Link: "/articles/1"},
		{Title: "padded", Link: "\n    " + srv.URL + "/articles/2\n  "},
		{Title: "escaped", Link: srv.URL + "/articles/3?a=1&amp;b=2"},
	}, true)
	require.NoError(t, err)

	require.NoError(t, NewExtractContentTask("Habr", env.deps).Execute(context.Background()))

	items, err := env.items.GetItems(c.ID, 0, 10, "")
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, database.ExtractionSuccess, item.ContentExtractionStatus, "%s: %s", item.Title, item.ContentExtractionError)
	}
	assert.Equal(t, "/articles/1", items[0].Link, "stored link stays as captured")
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		source   string
		link     string
		expected string
	}{
		{"https://habr.com/ru/all/", "/ru/post/1", "https://habr.com/ru/post/1"},
		{"https://habr.com/ru/all/", "post/2", "https://habr.com/ru/all/post/2"},
		{"http://planet.ubuntu.com/rss20.xml", "\n  https://ubuntu.com/blog/snap\n", "https://ubuntu.com/blog/snap"},
		{"https://habr.com/", "/ru/search?q=go&amp;page=2", "https://habr.com/ru/search?q=go&page=2"},
	}

	for _, tt := range tests {
		got, err := resolveLink(tt.source, tt.link)
		if err != nil {
			t.Errorf("resolveLink(%q): unexpected error: %v", tt.link, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("resolveLink(%q): expected '%s', got '%s'", tt.link, tt.expected, got)
		}
	}
}
