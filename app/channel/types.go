package channel

// Field names a pattern slot of a channel definition.
type Field string

const (
	FieldName        Field = "name"
	FieldSource      Field = "source"
	FieldItem        Field = "item"
	FieldTitle       Field = "title"
	FieldLink        Field = "link"
	FieldDescription Field = "description"
)

// Definition describes a channel: where its content lives and how to carve
// that content into items.
type Definition struct {
	Name               string
	Source             string
	ItemPattern        ExtractionPattern
	TitlePattern       ExtractionPattern
	LinkPattern        ExtractionPattern
	DescriptionPattern ExtractionPattern
}

// Pattern returns the pattern stored in the given field slot.
func (d Definition) Pattern(field Field) ExtractionPattern {
	switch field {
	case FieldItem:
		return d.ItemPattern
	case FieldTitle:
		return d.TitlePattern
	case FieldLink:
		return d.LinkPattern
	case FieldDescription:
		return d.DescriptionPattern
	default:
		return ExtractionPattern{}
	}
}

// patternFields lists pattern slots in validation order.
var patternFields = []Field{FieldItem, FieldTitle, FieldLink, FieldDescription}

// Item is one extracted feed entry. Fields are empty when the
// corresponding pattern found nothing inside the item block.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

// Settings control how the registry service polls and stores a channel.
// They are not part of the extraction contract.
type Settings struct {
	RefreshInterval int  `yaml:"refresh_interval" json:"refresh_interval"` // seconds
	Timeout         int  `yaml:"timeout" json:"timeout"`                   // seconds
	MaxItems        int  `yaml:"max_items" json:"max_items"`
	ExtractContent  bool `yaml:"extract_content" json:"extract_content"`
	DecodeEntities  bool `yaml:"decode_entities" json:"decode_entities"`
}
