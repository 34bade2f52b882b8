package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses a feed document. Items are returned in document order,
// including entries without an enclosure.
func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}

	if parsed.Image != nil {
		metadata.ImageURL = parsed.Image.URL
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		items = append(items, p.normalizeItem(item))
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		Title:        item.Title,
		Link:         item.Link,
		PublishedRaw: strings.TrimSpace(cmp.Or(item.Published, item.Updated)),
	}

	// RSS 2.0 allows a single enclosure per item
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		normalized.EnclosureURL = strings.TrimSpace(enclosure.URL)
		normalized.EnclosureType = enclosure.Type

		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				normalized.EnclosureLength = length
			}
		}
	}

	normalized.GUID = strings.TrimSpace(cmp.Or(item.GUID, item.Link, normalized.EnclosureURL))

	return normalized
}
