package database

import (
	"testing"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = RunMigrations(db)
	require.NoError(t, err)

	return db
}

func testDefinition(name string) channel.Definition {
	return channel.Definition{
		Name:               name,
		Source:             "http://planet.ubuntu.com/rss20.xml",
		ItemPattern:        channel.ParsePattern("(?s)<item>(.*?)</item>"),
		TitlePattern:       channel.ParsePattern("<title>(.*?)</title>"),
		LinkPattern:        channel.ParsePattern("(?s)<link>(.*?)</link>"),
		DescriptionPattern: channel.ParsePattern("(?is)<description>(.*?)</description>"),
	}
}
