package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/storage"
)

// Result is the outcome of one POST /v1/ingest call.
type Result struct {
	OK                  bool     `json:"ok"`
	Domain              string   `json:"domain"`
	SourceURL           string   `json:"source_url"`
	FactsTextExtraction int      `json:"facts_text_extraction"`
	FactsStructuredData int      `json:"facts_structured_data"`
	MarkdownPublished   bool     `json:"markdown_published"`
	QA                  QAResult `json:"qa"`
	Errors              []string `json:"errors,omitempty"`
	FixSuggestions      []string `json:"fix_suggestions,omitempty"`
}

// Ingestor runs the citation-grade pipeline end to end: fetch, snapshot,
// canonical extraction, structured-data harvest, sentence atomization,
// identity, QA gate, and atomic Markdown publication. All writes for one
// ingest are staged in a single transaction and committed only if the QA
// gate passes -- on failure, nothing from that run is persisted.
type Ingestor struct {
	fetcher *Fetcher
	store   storage.PostgresStore
	archive storage.SnapshotArchive
}

// SetArchive attaches an optional raw-HTML archival target. Uploads are
// best-effort: a failure here never fails the ingest, since the canonical
// copy of the HTML already committed to Postgres as part of HtmlSnapshot.
func (ing *Ingestor) SetArchive(archive storage.SnapshotArchive) {
	ing.archive = archive
}

func NewIngestor(fetcher *Fetcher, store storage.PostgresStore) *Ingestor {
	return &Ingestor{fetcher: fetcher, store: store}
}

// Ingest runs the pipeline for one (domain, source_url) pair. verified
// relaxes the QA gate's schema-coverage threshold to 0.
func (ing *Ingestor) Ingest(ctx context.Context, domainName, sourceURL string, verified bool) (*Result, error) {
	rawHTML, err := ing.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	canonical, err := ExtractCanonical(rawHTML)
	if err != nil {
		return nil, fmt.Errorf("ingest: canonical extraction: %w", err)
	}

	structuredItems, err := HarvestStructuredData(rawHTML)
	if err != nil {
		return nil, fmt.Errorf("ingest: structured data harvest: %w", err)
	}

	candidates, considered := AtomizeSentences(canonical)
	textFacts := BuildTextFacts(domainName, sourceURL, canonical.Hash, candidates)
	structuredFacts := BuildStructuredFacts(domainName, sourceURL, structuredItems)

	qa := RunQAGate(textFacts, structuredFacts, considered, verified)

	result := &Result{
		OK:                  qa.Pass,
		Domain:              domainName,
		SourceURL:           sourceURL,
		FactsTextExtraction: len(textFacts),
		FactsStructuredData: len(structuredFacts),
		QA:                  qa,
	}

	if !qa.Pass {
		result.Errors = qa.Errors
		result.FixSuggestions = qa.FixSuggestions
		return result, nil
	}

	snapshot := &domain.HtmlSnapshot{
		Domain:                 domainName,
		SourceURL:              sourceURL,
		HTML:                   rawHTML,
		CanonicalExtractedText: canonical.Text,
		ExtractionTextHash:     canonical.Hash,
		ExtractionMethod:       "goquery-heading-partition",
		FetchedAt:              time.Now().UTC(),
	}
	markdownContent := GenerateMarkdown(domainName, sourceURL, textFacts, structuredFacts)
	mv := NewMarkdownVersion(domainName, sourceURL, markdownContent)
	mv.GeneratedAt = time.Now().UTC()

	err = ing.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.UpsertHtmlSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("stage snapshot: %w", err)
		}
		for _, f := range textFacts {
			if err := tx.UpsertFact(ctx, f); err != nil {
				return fmt.Errorf("stage text fact %s: %w", f.FactID, err)
			}
		}
		for _, f := range structuredFacts {
			if err := tx.UpsertFact(ctx, f); err != nil {
				return fmt.Errorf("stage structured fact %s: %w", f.FactID, err)
			}
		}
		if err := tx.PublishMarkdownVersion(ctx, mv); err != nil {
			return fmt.Errorf("stage markdown: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: commit: %w", err)
	}

	result.MarkdownPublished = true
	ing.archiveSnapshot(ctx, domainName, snapshot.FetchedAt, rawHTML)
	return result, nil
}

// archiveSnapshot best-effort uploads the raw HTML to the optional object
// store. Postgres already holds the committed copy of record, so a failure
// here is logged and swallowed rather than surfaced to the caller.
func (ing *Ingestor) archiveSnapshot(ctx context.Context, domainName string, fetchedAt time.Time, rawHTML string) {
	if ing.archive == nil {
		return
	}
	key := fmt.Sprintf("snapshots/%s/%d-snapshot.html", domainName, fetchedAt.UnixNano())
	if err := ing.archive.Upload(ctx, key, bytes.NewReader([]byte(rawHTML)), int64(len(rawHTML))); err != nil {
		slog.Warn("snapshot archive upload failed", "domain", domainName, "key", key, "error", err)
	}
}
