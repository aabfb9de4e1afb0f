package channel

import (
	"iter"
	"regexp"
)

// Extraction is the outcome of one extraction pass. Zero items and items
// with empty fields are normal outcomes, not failures.
type Extraction struct {
	Items              []Item
	MissingTitle       int
	MissingLink        int
	MissingDescription int
}

// Empty reports whether the item pattern matched nothing.
func (e *Extraction) Empty() bool {
	return len(e.Items) == 0
}

// Degraded reports whether at least one item has an empty field.
func (e *Extraction) Degraded() bool {
	return e.MissingTitle+e.MissingLink+e.MissingDescription > 0
}

func (c *ValidatedChannel) validated() bool {
	return c != nil && c.item != nil && c.title != nil && c.link != nil && c.description != nil
}

// Items segments content into item blocks and lazily extracts the fields of
// each block, in document order. Field patterns only ever see the text of
// their own block.
func (c *ValidatedChannel) Items(content []byte) (iter.Seq[Item], error) {
	if !c.validated() {
		return nil, ErrUnvalidatedChannel
	}

	blocks := c.item.FindAllSubmatchIndex(content, -1)

	return func(yield func(Item) bool) {
		for _, loc := range blocks {
			if !yield(c.extractItem(capture(content, loc))) {
				return
			}
		}
	}, nil
}

// Extract runs a full extraction pass and collects the results.
func (c *ValidatedChannel) Extract(content []byte) (*Extraction, error) {
	items, err := c.Items(content)
	if err != nil {
		return nil, err
	}

	result := &Extraction{Items: []Item{}}
	for item := range items {
		if item.Title == "" {
			result.MissingTitle++
		}
		if item.Link == "" {
			result.MissingLink++
		}
		if item.Description == "" {
			result.MissingDescription++
		}
		result.Items = append(result.Items, item)
	}

	return result, nil
}

func (c *ValidatedChannel) extractItem(block []byte) Item {
	return Item{
		Title:       firstCapture(c.title, block),
		Link:        firstCapture(c.link, block),
		Description: firstCapture(c.description, block),
	}
}

// firstCapture returns the single capturing group of the leftmost match of
// re in block, or "" when there is no match.
func firstCapture(re *regexp.Regexp, block []byte) string {
	loc := re.FindSubmatchIndex(block)
	if loc == nil {
		return ""
	}
	return string(capture(block, loc))
}

// capture slices the first capturing group out of a submatch index. A group
// that did not participate in the match yields nil.
func capture(src []byte, loc []int) []byte {
	if len(loc) < 4 || loc[2] < 0 {
		return nil
	}
	return src[loc[2]:loc[3]]
}
