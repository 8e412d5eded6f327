// Package htmlutils provides HTML processing utilities for feed content.
//
// The package handles:
//   - Extraction of plain text from entry markup for filter matching and prompts
//   - Removal of comment nodes and non-content subtrees
//   - Control character stripping for syndication titles
package htmlutils

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// removedSelector lists element subtrees that never contribute visible text
// worth matching or summarizing.
const removedSelector = "script,style,img,a,video,audio,iframe,input"

// CleanText extracts plain text from raw entry markup. HTML entities are
// decoded first, comment nodes are dropped, and the subtrees matched by
// removedSelector are removed before the remaining text is collected.
// Text originating solely from removed markup never appears in the output.
// Malformed markup degrades to best-effort extraction, never an error.
func CleanText(markup string) string {
	decoded := html.UnescapeString(markup)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(decoded))
	if err != nil {
		// Parse errors only surface on reader failure; fall back to the
		// decoded input as-is.
		return decoded
	}

	for _, root := range doc.Nodes {
		removeComments(root)
	}

	doc.Find(removedSelector).Remove()

	return doc.Text()
}

// removeComments drops every comment node under n.
func removeComments(n *xhtml.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling

		if child.Type == xhtml.CommentNode {
			n.RemoveChild(child)
		} else {
			removeComments(child)
		}

		child = next
	}
}

// StripControlChars removes ASCII control characters (0x00-0x1F, 0x7F) that
// break XML serialization of titles.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return -1
		}

		return r
	}, s)
}
