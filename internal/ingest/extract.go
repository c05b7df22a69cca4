package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const sectionSeparator = "\n\n—\n\n"

// Section is one heading-partitioned block of the canonical extraction,
// with its absolute character offsets in the concatenated text.
type Section struct {
	Heading   string
	Text      string
	CharStart int
	CharEnd   int
}

// Canonical is the result of canonical extraction: the concatenated text
// every downstream step anchors against, plus its section boundaries.
type Canonical struct {
	Text     string
	Hash     string
	Sections []Section
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true, "aside": true,
	"noscript": true,
}

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// boilerplatePatterns match common CTA / chrome text that survives naive
// text extraction but carries no citeable content.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(click here|read more|learn more|sign up|subscribe now|all rights reserved)$`),
	regexp.MustCompile(`(?i)^(privacy policy|terms of service|terms and conditions|cookie policy)$`),
	regexp.MustCompile(`(?i)^(skip to (main )?content|back to top|share this (page|article))$`),
}

// ExtractCanonical strips script/style/nav/footer/aside, collapses
// whitespace, partitions the remaining text by heading hierarchy into
// sections, scrubs boilerplate lines, and concatenates the surviving
// sections with a fixed separator.
func ExtractCanonical(rawHTML string) (*Canonical, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("ingest: parse html: %w", err)
	}

	raw := sectionize(doc)

	var b strings.Builder
	var sections []Section
	for i, s := range raw {
		text := scrubBoilerplate(collapseWhitespace(s.Text))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(sectionSeparator)
		}
		start := b.Len()
		b.WriteString(text)
		end := b.Len()
		sections = append(sections, Section{
			Heading:   strings.TrimSpace(s.Heading),
			Text:      text,
			CharStart: start,
			CharEnd:   end,
		})
		_ = i
	}

	full := b.String()
	sum := sha256.Sum256([]byte(full))

	return &Canonical{
		Text:     full,
		Hash:     hex.EncodeToString(sum[:]),
		Sections: sections,
	}, nil
}

type rawSection struct {
	Heading string
	Text    string
}

// sectionize walks the parsed document in order, starting a new section at
// every heading boundary and accumulating text nodes into the current one.
func sectionize(doc *goquery.Document) []*rawSection {
	var sections []*rawSection
	var cur *rawSection

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedTags[n.Data] {
				return
			}
			if headingTags[n.Data] {
				sections = append(sections, &rawSection{Heading: textOf(n)})
				cur = sections[len(sections)-1]
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if cur == nil {
					sections = append(sections, &rawSection{})
					cur = sections[len(sections)-1]
				}
				cur.Text += text + " "
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range doc.Selection.Nodes {
		walk(n)
	}
	return sections
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// scrubBoilerplate drops lines matching known CTA/chrome patterns, then
// rejoins the remainder.
func scrubBoilerplate(s string) string {
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isBoilerplate(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}

func isBoilerplate(line string) bool {
	for _, p := range boilerplatePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
