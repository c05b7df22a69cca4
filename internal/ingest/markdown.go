package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/malwarescan/oracle/internal/domain"
)

const markdownProtocolVersion = "1.1"

// DerivedPath returns the markdown mirror path for a source URL: its
// pathname with leading/trailing slashes stripped, or "index" when empty.
func DerivedPath(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "index"
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "index"
	}
	return path
}

// GenerateMarkdown renders the citation-grade Markdown mirror for one
// source page: frontmatter, a citation-grade text-fact section, and a
// not-anchorable structured-data section.
func GenerateMarkdown(domainName, sourceURL string, textFacts, structuredFacts []*domain.Fact) string {
	var b strings.Builder

	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "domain: %s\n", domainName)
	fmt.Fprintf(&b, "source_url: %s\n", sourceURL)
	fmt.Fprintf(&b, "markdown_version: %q\n", markdownProtocolVersion)
	fmt.Fprintf(&b, "---\n\n")

	b.WriteString("# Facts (Text Extraction) — Citation-Grade\n\n")
	if len(textFacts) == 0 {
		b.WriteString("_No text-extraction facts for this page._\n\n")
	}
	for _, f := range textFacts {
		fmt.Fprintf(&b, "- **%s**: %s\n", f.Predicate, f.Object)
		if f.SupportingText != nil {
			fmt.Fprintf(&b, "  - supporting text: %q\n", *f.SupportingText)
		}
		if f.EvidenceAnchor != nil {
			fmt.Fprintf(&b, "  - anchor: chars %d-%d, fragment_hash=%s\n",
				f.EvidenceAnchor.CharStart, f.EvidenceAnchor.CharEnd, f.EvidenceAnchor.FragmentHash)
		}
		fmt.Fprintf(&b, "  - fact_id: %s\n", f.FactID)
	}

	b.WriteString("\n# Metadata (Structured Data) — Not Anchorable\n\n")
	if len(structuredFacts) == 0 {
		b.WriteString("_No structured-data facts for this page._\n")
	}
	for _, f := range structuredFacts {
		fmt.Fprintf(&b, "- **%s**: %s", f.Predicate, f.Object)
		if f.SourcePath != nil {
			fmt.Fprintf(&b, " (%s)", *f.SourcePath)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NewMarkdownVersion builds the MarkdownVersion row for one publication,
// marked active; the caller deactivates the prior active row for the same
// (domain, path) inside the same transaction.
func NewMarkdownVersion(domainName, sourceURL, content string) *domain.MarkdownVersion {
	return &domain.MarkdownVersion{
		Domain:          domainName,
		Path:            DerivedPath(sourceURL),
		Content:         content,
		ContentHash:     contentHash(content),
		IsActive:        true,
		MarkdownVersion: markdownProtocolVersion,
		ProtocolVersion: markdownProtocolVersion,
	}
}
