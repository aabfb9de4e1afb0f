package feed

import (
	"testing"
)

func TestProbe_RSS(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Planet Ubuntu</title>
    <link>http://planet.ubuntu.com/</link>
    <description>Planet Ubuntu - http://planet.ubuntu.com/</description>
    <language>en</language>
    <image>
      <url>http://planet.ubuntu.com/icon.png</url>
    </image>
    <item><title>Post</title></item>
  </channel>
</rss>`

	metadata := NewProbe().Run([]byte(rssData))

	if metadata.Title != "Planet Ubuntu" {
		t.Errorf("Expected title 'Planet Ubuntu', got '%s'", metadata.Title)
	}
	if metadata.Link != "http://planet.ubuntu.com/" {
		t.Errorf("Expected link 'http://planet.ubuntu.com/', got '%s'", metadata.Link)
	}
	if metadata.Language != "en" {
		t.Errorf("Expected language 'en', got '%s'", metadata.Language)
	}
	if metadata.ImageURL != "http://planet.ubuntu.com/icon.png" {
		t.Errorf("Expected image URL, got '%s'", metadata.ImageURL)
	}
}

func TestProbe_Atom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Source</title>
  <link href="https://example.com/"/>
  <entry><title>Entry</title></entry>
</feed>`

	metadata := NewProbe().Run([]byte(atomData))

	if metadata.Title != "Atom Source" {
		t.Errorf("Expected title 'Atom Source', got '%s'", metadata.Title)
	}
	if metadata.Link != "https://example.com/" {
		t.Errorf("Expected link 'https://example.com/', got '%s'", metadata.Link)
	}
}

func TestProbe_HTMLPage(t *testing.T) {
	page := `<!DOCTYPE html>
<html lang="ru">
<head>
  <title> Все публикации подряд / Хабр </title>
  <meta name="description" content="Публикации">
  <link rel="canonical" href="https://habr.com/ru/all/">
  <link rel="shortcut icon" href="/favicon.ico">
</head>
<body><article class="post post_preview"><h2>Post</h2></article></body>
</html>`

	metadata := NewProbe().Run([]byte(page))

	if metadata.Title != "Все публикации подряд / Хабр" {
		t.Errorf("Expected trimmed page title, got '%s'", metadata.Title)
	}
	if metadata.Language != "ru" {
		t.Errorf("Expected language 'ru', got '%s'", metadata.Language)
	}
	if metadata.Description != "Публикации" {
		t.Errorf("Expected description 'Публикации', got '%s'", metadata.Description)
	}
	if metadata.Link != "https://habr.com/ru/all/" {
		t.Errorf("Expected canonical link, got '%s'", metadata.Link)
	}
	if metadata.ImageURL != "/favicon.ico" {
		t.Errorf("Expected icon '/favicon.ico', got '%s'", metadata.ImageURL)
	}
}

func TestProbe_Garbage(t *testing.T) {
	metadata := NewProbe().Run([]byte("not a document"))

	if metadata.Title != "" || metadata.Link != "" {
		t.Errorf("Expected empty metadata, got %+v", metadata)
	}
}
