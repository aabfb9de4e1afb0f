package feed

// Metadata is what a source says about itself. Fields are empty when the
// source does not provide them.
type Metadata struct {
	Title       string
	Description string
	Link        string
	ImageURL    string
	Language    string
}

// Document is a fetched source body decoded to UTF-8.
type Document struct {
	URL         string
	ContentType string
	Charset     string // Charset the body was decoded from
	Data        []byte
}
