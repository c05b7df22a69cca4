// Package publish implements the domain-scoped read surface over ingested
// facts and mirrors: status/tier reporting, NDJSON fact export, the JSON-LD
// entity graph, per-URL anchor validation, and the authoritative Markdown
// mirror.
package publish

import (
	"context"
	"fmt"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/kb"
	"github.com/malwarescan/oracle/internal/storage"
)

const (
	citationGradeMinFacts    = 10
	citationGradeMinAnchored = 0.95

	// markdownProtocolVersion is the protocol version this publisher
	// reports for a domain once it has any ingested facts; it matches the
	// version the Ingestor stamps on Markdown and Fact rows.
	markdownProtocolVersion = "1.1"
)

// Publisher reads directly from the durable store -- it does not go
// through the job/event pipeline. The verification flag is served through
// the short-TTL kb.Cache so a burst of status polling doesn't hit Postgres
// on every request; cache is optional and nil falls back to a direct read.
type Publisher struct {
	store storage.PostgresStore
	cache *kb.Cache
}

func New(store storage.PostgresStore, cache *kb.Cache) *Publisher {
	return &Publisher{store: store, cache: cache}
}

// Versions is the {markdown, facts, graph} protocol-version triple reported
// alongside a domain's status.
type Versions struct {
	Markdown string `json:"markdown"`
	Facts    string `json:"facts"`
	Graph    string `json:"graph"`
}

// Counts summarizes a domain's ingested inventory.
type Counts struct {
	FactsTotal          int `json:"facts_total"`
	FactsTextExtraction int `json:"facts_text_extraction"`
	FactsStructuredData int `json:"facts_structured_data"`
	Pages               int `json:"pages"`
	Entities            int `json:"entities"`
}

// Status is the response body for GET /v1/status/:domain.
type Status struct {
	Domain         string     `json:"domain"`
	Verified       bool       `json:"verified"`
	Versions       Versions   `json:"versions"`
	Counts         Counts     `json:"counts"`
	Nonempty       bool       `json:"nonempty"`
	AnchorCoverage float64    `json:"anchor_coverage"`
	Tier           domain.Tier `json:"tier"`
}

// Status computes the tier report for a domain: verification flag,
// protocol versions, fact/page/entity counts, anchor coverage over text
// facts only, and the coarse quality tier.
func (p *Publisher) Status(ctx context.Context, domainName string) (*Status, error) {
	verified, err := p.isVerified(ctx, domainName)
	if err != nil {
		return nil, err
	}

	counts, err := p.store.CountFacts(ctx, domainName)
	if err != nil {
		return nil, fmt.Errorf("publish: status: count facts: %w", err)
	}
	textCount := counts[string(domain.EvidenceTextExtraction)]
	structuredCount := counts[string(domain.EvidenceStructuredData)]
	total := 0
	for _, c := range counts {
		total += c
	}

	textFacts, err := p.store.GetFactsByDomain(ctx, domainName, string(domain.EvidenceTextExtraction), "")
	if err != nil {
		return nil, fmt.Errorf("publish: status: get text facts: %w", err)
	}
	anchored := 0
	for _, f := range textFacts {
		if !f.AnchorMissing && f.EvidenceAnchor != nil {
			anchored++
		}
	}
	anchorCoverage := 1.0
	if len(textFacts) > 0 {
		anchorCoverage = float64(anchored) / float64(len(textFacts))
	}

	pages, err := p.store.ListDiscoveredPages(ctx, domainName)
	if err != nil {
		return nil, fmt.Errorf("publish: status: list discovered pages: %w", err)
	}

	graphFacts, err := p.store.GetFactsByDomain(ctx, domainName, "", "")
	if err != nil {
		return nil, fmt.Errorf("publish: status: get facts for graph: %w", err)
	}
	graphNonempty := len(buildGraph(graphFacts).Nodes) > 0

	markdownVersion, factsVersion := "", ""
	if total > 0 {
		markdownVersion = markdownProtocolVersion
		factsVersion = markdownProtocolVersion
	}

	tier := domain.TierBestEffort
	citationGrade := textCount >= citationGradeMinFacts && anchorCoverage >= citationGradeMinAnchored
	if citationGrade {
		tier = domain.TierCitationGrade
		if markdownVersion == markdownProtocolVersion && factsVersion == markdownProtocolVersion && graphNonempty {
			tier = domain.TierFullProtocol
		}
	}

	return &Status{
		Domain:   domainName,
		Verified: verified,
		Versions: Versions{Markdown: markdownVersion, Facts: factsVersion, Graph: graphVersion(graphNonempty)},
		Counts: Counts{
			FactsTotal:          total,
			FactsTextExtraction: textCount,
			FactsStructuredData: structuredCount,
			Pages:               len(pages),
			Entities:            countEntities(graphFacts),
		},
		Nonempty:       total > 0,
		AnchorCoverage: anchorCoverage,
		Tier:           tier,
	}, nil
}

func (p *Publisher) isVerified(ctx context.Context, domainName string) (bool, error) {
	if p.cache != nil {
		s, err := p.cache.GetStatus(ctx, domainName)
		if err != nil {
			return false, fmt.Errorf("publish: get cached status: %w", err)
		}
		return s.Verified, nil
	}

	d, err := p.store.GetVerifiedDomain(ctx, domainName)
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("publish: get verified domain: %w", err)
	}
	return d.Verified(), nil
}

func graphVersion(nonempty bool) string {
	if nonempty {
		return markdownProtocolVersion
	}
	return ""
}

func countEntities(facts []domain.Fact) int {
	subjects := make(map[string]bool, len(facts))
	for _, f := range facts {
		subjects[f.Subject] = true
	}
	return len(subjects)
}
