package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/iluhasan/podcast/app/database"
)

// LibraryInfo describes the channel of the generated library feed.
type LibraryInfo struct {
	Title        string
	Link         string
	Description  string
	SelfLink     string
	MediaBaseURL string // downloaded files are served below this URL
	Version      string
}

// Generator renders the locally downloaded episodes as an RSS 2.0 feed.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(info LibraryInfo, episodes []database.Episode) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(info.Title, "Podcast library"), 4)
	g.writeElement(&buf, "link", info.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(info.Description, "Locally downloaded podcast episodes"), 4)

	if info.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(info.SelfLink)))
	}

	lastBuildDate := time.Now()
	if len(episodes) > 0 {
		lastBuildDate = episodes[0].DownloadedAt
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("podcast-fetcher/%s", cmp.Or(info.Version, "dev")), 4)

	for _, episode := range episodes {
		g.writeItem(&buf, info, episode)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, info LibraryInfo, episode database.Episode) {
	buf.WriteString("    <item>\n")

	if episode.GUID != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(episode.GUID)))
		xml.EscapeText(buf, []byte(episode.GUID))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", cmp.Or(episode.Title, episode.FileName), 6)

	// keep the publisher's text; it may not have been parseable
	g.writeElement(buf, "pubDate", cmp.Or(episode.PublishedRaw, episode.DownloadedAt.Format(time.RFC1123Z)), 6)

	enclosureURL := episode.EnclosureURL
	if info.MediaBaseURL != "" {
		enclosureURL = strings.TrimRight(info.MediaBaseURL, "/") + "/" + url.PathEscape(episode.FileName)
	}
	if enclosureURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"%d\" type=\"%s\" />\n",
			html.EscapeString(enclosureURL),
			episode.SizeBytes,
			html.EscapeString(cmp.Or(episode.EnclosureType, "audio/mpeg"))))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
