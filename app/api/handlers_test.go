package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-rules/app/cache"
	"github.com/lysyi3m/rss-rules/app/cfg"
	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
	"github.com/lysyi3m/rss-rules/app/metrics"
	"github.com/lysyi3m/rss-rules/app/tasks"
)

type fakeScheduler struct {
	mu        sync.Mutex
	refreshed []string
}

var _ tasks.TaskSchedulerInterface = (*fakeScheduler)(nil)

func (s *fakeScheduler) Start()                                {}
func (s *fakeScheduler) Stop()                                 {}
func (s *fakeScheduler) EnqueueTask(tasks.TaskInterface) error { return nil }

func (s *fakeScheduler) RefreshChannel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = append(s.refreshed, name)
	return nil
}

type testServer struct {
	router    *gin.Engine
	channels  *database.ChannelRepository
	items     *database.ItemRepository
	scheduler *fakeScheduler
	metrics   *metrics.Metrics
	redis     *miniredis.Miniredis
	compiled  *channel.Cache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg.Set(&cfg.Cfg{Port: "8080", BaseUrl: "https://feeds.example.com", Version: "test"})

	db, err := database.NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	feedCache, err := cache.NewCache(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { feedCache.Close() })

	reg := prometheus.NewRegistry()
	ts := &testServer{
		channels:  database.NewChannelRepository(db),
		items:     database.NewItemRepository(db),
		scheduler: &fakeScheduler{},
		metrics:   metrics.New(reg),
		redis:     mr,
		compiled:  channel.NewCache(),
	}

	handler := NewHandler(ts.channels, ts.items, ts.compiled, feedCache, time.Minute, ts.scheduler, ts.metrics)
	ts.router = NewServer(handler, reg)

	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (ts *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(req)
}

func registrationForm(name string) url.Values {
	return url.Values{
		"channel_name":        {name},
		"channel_source":      {"http://planet.ubuntu.com/rss20.xml"},
		"item_pattern":        {"(?s)<item>(.*?)</item>"},
		"title_pattern":       {"<title>(.*?)</title>"},
		"description_pattern": {"(?is)<description>(.*?)</description>"},
		"link_pattern":        {"(?s)<link>(.*?)</link>"},
	}
}

func (ts *testServer) seedChannel(t *testing.T, name string, items ...channel.Item) *database.Channel {
	t.Helper()

	def := channel.Definition{
		Name:               name,
		Source:             "http://planet.ubuntu.com/rss20.xml",
		ItemPattern:        channel.ParsePattern("(?s)<item>(.*?)</item>"),
		TitlePattern:       channel.ParsePattern("<title>(.*?)</title>"),
		LinkPattern:        channel.ParsePattern("<link>(.*?)</link>"),
		DescriptionPattern: channel.ParsePattern("<description>(.*?)</description>"),
	}

	c, err := ts.channels.CreateChannel(def, channel.Settings{}.WithDefaults())
	require.NoError(t, err)

	if len(items) > 0 {
		_, err = ts.items.ReplaceItems(c.ID, items, false)
		require.NoError(t, err)
	}

	return c
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestAddChannel_Created(t *testing.T) {
	ts := newTestServer(t)

	form := registrationForm("Ubuntu Planet")
	form.Set("refresh_interval", "600")
	form.Set("extract_content", "true")

	w := ts.postForm("/addchannel", form)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Channel channelResponse `json:"channel"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "Ubuntu Planet", resp.Channel.Name)
	assert.Equal(t, "(?is)<description>(.*?)</description>", resp.Channel.Patterns.Description)
	assert.Equal(t, 600, resp.Channel.Settings.RefreshInterval)
	assert.Equal(t, channel.DefaultMaxItems, resp.Channel.Settings.MaxItems)
	assert.True(t, resp.Channel.Settings.ExtractContent)

	stored, err := ts.channels.GetChannel("Ubuntu Planet")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Patterns.Item.Flags.Has(channel.FlagDotMatchesNewline))

	assert.Equal(t, []string{"Ubuntu Planet"}, ts.scheduler.refreshed)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.RegistrationsTotal.WithLabelValues(resultCreated)))
}

func TestAddChannel_MissingFormField(t *testing.T) {
	ts := newTestServer(t)

	form := registrationForm("Ubuntu Planet")
	form.Del("link_pattern")

	w := ts.postForm("/addchannel", form)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	decode(t, w, &resp)
	assert.Equal(t, "link_pattern", resp.Field)
	assert.Equal(t, "missing_form_field", resp.Kind)
	assert.Empty(t, ts.scheduler.refreshed)
}

func TestAddChannel_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
		kind  string
	}{
		{"empty name", "channel_name", "", "name", "missing_field"},
		{"malformed item", "item_pattern", "(?s)<item>(.*?</item>", "item", "malformed_pattern"},
		{"title without group", "title_pattern", "<title>.*?</title>", "title", "wrong_group_count"},
		{"item without dotall", "item_pattern", "<item>(.*?)</item>", "item", "missing_multiline_flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			form := registrationForm("Ubuntu Planet")
			form.Set(tt.key, tt.value)

			w := ts.postForm("/addchannel", form)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var resp errorResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.field, resp.Field)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.Error)

			count, err := ts.channels.GetChannelCount()
			require.NoError(t, err)
			assert.Zero(t, count)
			assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.RegistrationsTotal.WithLabelValues(resultInvalid)))
		})
	}
}

func TestAddChannel_InvalidSetting(t *testing.T) {
	ts := newTestServer(t)

	form := registrationForm("Ubuntu Planet")
	form.Set("max_items", "-1")

	w := ts.postForm("/addchannel", form)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	decode(t, w, &resp)
	assert.Equal(t, "max_items", resp.Field)
	assert.Equal(t, "invalid_setting", resp.Kind)
}

func TestAddChannel_Duplicate(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusCreated, ts.postForm("/addchannel", registrationForm("Ubuntu Planet")).Code)

	w := ts.postForm("/addchannel", registrationForm("Ubuntu Planet"))
	require.Equal(t, http.StatusConflict, w.Code)

	var resp errorResponse
	decode(t, w, &resp)
	assert.Equal(t, "duplicate", resp.Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.RegistrationsTotal.WithLabelValues(resultDuplicate)))
}

func TestListAndGetChannel(t *testing.T) {
	ts := newTestServer(t)
	ts.seedChannel(t, "habr", channel.Item{Title: "A", Link: "u1", Description: "d1"})
	ts.seedChannel(t, "ubuntu")

	w := ts.get("/channels")
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Channels []channelResponse `json:"channels"`
		Total    int               `json:"total"`
	}
	decode(t, w, &list)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "habr", list.Channels[0].Name)

	w = ts.get("/channels/habr")
	require.Equal(t, http.StatusOK, w.Code)

	var details struct {
		Channel channelResponse `json:"channel"`
		Items   struct {
			Total int `json:"total"`
		} `json:"items"`
	}
	decode(t, w, &details)
	assert.Equal(t, "habr", details.Channel.Name)
	assert.Equal(t, 1, details.Items.Total)

	assert.Equal(t, http.StatusNotFound, ts.get("/channels/missing").Code)
}

func TestGetItems_PagingAndFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.seedChannel(t, "ubuntu",
		channel.Item{Title: "Snap update", Link: "u1"},
		channel.Item{Title: "Kernel news", Link: "u2"},
		channel.Item{Title: "Snapcraft summit", Link: "u3"},
	)

	var page struct {
		Items []itemResponse `json:"items"`
	}

	w := ts.get("/channels/ubuntu/items?offset=1&limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Kernel news", page.Items[0].Title)

	w = ts.get("/channels/ubuntu/items?filter=snap")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Snap update", page.Items[0].Title)
	assert.Equal(t, "Snapcraft summit", page.Items[1].Title)

	assert.Equal(t, http.StatusBadRequest, ts.get("/channels/ubuntu/items?offset=x").Code)
}

func TestGetRSS_CachesRendering(t *testing.T) {
	ts := newTestServer(t)
	ts.seedChannel(t, "ubuntu", channel.Item{Title: "Snap update", Link: "https://ubuntu.com/blog/snap"})

	w := ts.get("/channels/ubuntu/rss")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "1", w.Header().Get("X-Feed-Items"))
	assert.Contains(t, w.Body.String(), "<title>Snap update</title>")
	assert.Contains(t, w.Body.String(), "https://feeds.example.com/channels/ubuntu/rss")
	assert.True(t, ts.redis.Exists(cache.FeedKey("ubuntu")))

	w = ts.get("/channels/ubuntu/rss")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Contains(t, w.Body.String(), "<title>Snap update</title>")

	assert.Equal(t, http.StatusNotFound, ts.get("/channels/missing/rss").Code)
}

func TestRefreshChannel(t *testing.T) {
	ts := newTestServer(t)
	ts.seedChannel(t, "ubuntu")

	w := ts.do(httptest.NewRequest(http.MethodPost, "/channels/ubuntu/refresh", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"ubuntu"}, ts.scheduler.refreshed)

	w = ts.do(httptest.NewRequest(http.MethodPost, "/channels/missing/refresh", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteChannel(t *testing.T) {
	ts := newTestServer(t)
	ts.seedChannel(t, "ubuntu", channel.Item{Title: "A", Link: "u1"})
	ts.seedChannel(t, "habr")

	require.Equal(t, http.StatusOK, ts.get("/channels/ubuntu/rss").Code)
	require.True(t, ts.redis.Exists(cache.FeedKey("ubuntu")))

	w := ts.do(httptest.NewRequest(http.MethodDelete, "/channels/ubuntu", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ts.redis.Exists(cache.FeedKey("ubuntu")))
	assert.Equal(t, http.StatusNotFound, ts.get("/channels/ubuntu").Code)

	w = ts.do(httptest.NewRequest(http.MethodPost, "/deletechannel/habr", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodPost, "/deletechannel/habr", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.seedChannel(t, "ubuntu")

	w := ts.get("/health")
	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]any
	decode(t, w, &health)
	assert.Equal(t, 1.0, health["channels"])
	assert.Equal(t, "healthy", health["cache"].(map[string]any)["status"])

	ts.postForm("/addchannel", registrationForm("habr"))

	w = ts.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rss_rules_registry_registrations_total")
}

func TestRootAndCORS(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/addchannel")

	w = ts.do(httptest.NewRequest(http.MethodOptions, "/addchannel", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
