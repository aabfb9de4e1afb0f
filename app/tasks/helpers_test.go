package tasks

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
	"github.com/lysyi3m/rss-rules/app/feed"
	"github.com/lysyi3m/rss-rules/app/metrics"
	"github.com/lysyi3m/rss-rules/app/publisher"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publisher.ExtractionMessage
	err      error
}

func (p *recordingPublisher) PublishExtraction(_ context.Context, msg publisher.ExtractionMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingFeedCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingFeedCache) InvalidateFeed(_ context.Context, channelName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, channelName)
	return nil
}

type testEnv struct {
	deps      *Deps
	channels  *database.ChannelRepository
	items     *database.ItemRepository
	publisher *recordingPublisher
	feedCache *recordingFeedCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	env := &testEnv{
		channels:  database.NewChannelRepository(db),
		items:     database.NewItemRepository(db),
		publisher: &recordingPublisher{},
		feedCache: &recordingFeedCache{},
	}

	env.deps = &Deps{
		Channels:         env.channels,
		Items:            env.items,
		Compiled:         channel.NewCache(),
		Fetcher:          feed.NewFetcher(&http.Client{}, "RSS Rules/test"),
		Probe:            feed.NewProbe(),
		ContentExtractor: feed.NewContentExtractor(),
		Publisher:        env.publisher,
		FeedCache:        env.feedCache,
		Metrics:          metrics.New(prometheus.NewRegistry()),
		DefaultRefresh:   time.Hour,
	}

	return env
}

func testDefinition(name, source string) channel.Definition {
	return channel.Definition{
		Name:               name,
		Source:             source,
		ItemPattern:        channel.ParsePattern("(?s)<item>(.*?)</item>"),
		TitlePattern:       channel.ParsePattern("<title>(.*?)</title>"),
		LinkPattern:        channel.ParsePattern("(?s)<link>(.*?)</link>"),
		DescriptionPattern: channel.ParsePattern("(?s)<description>(.*?)</description>"),
	}
}

func (e *testEnv) createChannel(t *testing.T, def channel.Definition, settings channel.Settings) *database.Channel {
	t.Helper()

	c, err := e.channels.CreateChannel(def, settings.WithDefaults())
	require.NoError(t, err)
	return c
}

const planetFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Planet Ubuntu</title>
	<link>http://planet.ubuntu.com/</link>
	<description>Planet Ubuntu - http://planet.ubuntu.com/</description>
	<item>
		<title>Ubuntu Weekly Newsletter</title>
		<link>%s/articles/1</link>
		<description>Welcome to the Ubuntu Weekly Newsletter &amp; more</description>
	</item>
	<item>
		<title>Snap store update</title>
		<link>%s/articles/2</link>
		<description>What is new in the store</description>
	</item>
</channel>
</rss>`

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Ubuntu Weekly Newsletter</title></head>
<body>
	<header><nav>Navigation</nav></header>
	<main>
		<article>
			<h1>Ubuntu Weekly Newsletter</h1>
			<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
			<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
			<p>Here is some more substantial content to ensure we meet the character threshold for the article body.</p>
		</article>
	</main>
	<footer><p>Copyright 2024</p></footer>
</body>
</html>`
