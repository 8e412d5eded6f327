// Package opml handles importing and exporting OPML subscription lists.
// Folder structure and category attributes map to tags.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/feedbrew/feedbrew/internal/core/domain"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (folder or feed).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Category string    `xml:"category,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// FeedEntry is a flattened feed with the tag names derived from its folder
// path and category attribute.
type FeedEntry struct {
	Title string
	URL   string
	Tags  []string
}

// Parse reads an OPML document and returns a flat list of feed entries.
// Folder names on the path to a feed become tags, as do comma-separated
// values of the feed's category attribute.
func Parse(r io.Reader) ([]FeedEntry, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}

	var entries []FeedEntry

	var walk func(outlines []Outline, path []string)

	walk = func(outlines []Outline, path []string) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}

				tags := append([]string{}, path...)

				for _, raw := range strings.Split(o.Category, ",") {
					if name := strings.TrimSpace(raw); name != "" && !contains(tags, name) {
						tags = append(tags, name)
					}
				}

				entries = append(entries, FeedEntry{Title: title, URL: o.XMLURL, Tags: tags})

				continue
			}

			name := o.Title
			if name == "" {
				name = o.Text
			}

			next := path
			if name != "" {
				next = append(append([]string{}, path...), name)
			}

			walk(o.Outlines, next)
		}
	}

	walk(doc.Body.Outlines, nil)

	return entries, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

// Export renders source feeds as a flat OPML document. Tags ride along in the
// category attribute for interoperability.
func Export(sources []domain.SourceFeed) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       "feedbrew source feeds",
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}

	for _, sf := range sources {
		text := sf.Title
		if text == "" {
			text = sf.URL
		}

		var names []string
		for _, t := range sf.Tags {
			names = append(names, t.Name)
		}

		sort.Strings(names)

		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:     text,
			Title:    text,
			Type:     "rss",
			XMLURL:   sf.URL,
			HTMLURL:  sf.URL,
			Category: strings.Join(names, ", "),
		})
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), output...), nil
}
