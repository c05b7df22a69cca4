package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/malwarescan/oracle/internal/apierr"
	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/storage"
)

const (
	extractCitationGradeMinPassed    = 10
	extractCitationGradeMinPassRate  = 0.95
	maxFailedExamples                = 3
)

// FailedExample is one anchor-validation failure, with enough detail to
// diagnose it: the expected and actual fragment hash, and a reason code.
type FailedExample struct {
	FactID       string `json:"fact_id"`
	Reason       string `json:"reason"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	ActualHash   string `json:"actual_hash,omitempty"`
}

const (
	reasonSliceMismatch = "slice_mismatch"
	reasonHashMismatch  = "hash_mismatch"
	reasonNoAnchor      = "no_anchor"
)

// ExtractReport is the response body for GET /v1/extract/:domain?url=.
type ExtractReport struct {
	Domain         string           `json:"domain"`
	SourceURL      string           `json:"source_url"`
	FactsValidated int              `json:"facts_validated"`
	FactsPassed    int              `json:"facts_passed"`
	PassRate       float64          `json:"pass_rate"`
	CitationGrade  bool             `json:"citation_grade"`
	FailedExamples []FailedExample  `json:"failed_examples,omitempty"`
}

// Extract re-validates every text-extraction fact for one (domain,
// source_url) against the latest canonical snapshot: each fact's anchor
// must slice out exactly its supporting_text, and that slice must hash to
// the recorded fragment_hash.
func (p *Publisher) Extract(ctx context.Context, domainName, sourceURL string) (*ExtractReport, error) {
	snapshot, err := p.store.GetLatestSnapshot(ctx, domainName, sourceURL)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apierr.New(apierr.NotFound, fmt.Sprintf("no snapshot for %s %s", domainName, sourceURL))
		}
		return nil, fmt.Errorf("publish: extract: get snapshot: %w", err)
	}

	facts, err := p.store.GetFactsBySourceURL(ctx, domainName, sourceURL, string(domain.EvidenceTextExtraction))
	if err != nil {
		return nil, fmt.Errorf("publish: extract: get facts: %w", err)
	}

	report := &ExtractReport{Domain: domainName, SourceURL: sourceURL, FactsValidated: len(facts)}

	for _, f := range facts {
		failure, ok := validateAnchor(snapshot.CanonicalExtractedText, f)
		if ok {
			report.FactsPassed++
			continue
		}
		if len(report.FailedExamples) < maxFailedExamples {
			report.FailedExamples = append(report.FailedExamples, *failure)
		}
	}

	if report.FactsValidated > 0 {
		report.PassRate = float64(report.FactsPassed) / float64(report.FactsValidated)
	} else {
		report.PassRate = 1.0
	}
	report.CitationGrade = report.PassRate >= extractCitationGradeMinPassRate && report.FactsPassed >= extractCitationGradeMinPassed

	return report, nil
}

// validateAnchor re-slices canonicalText at the fact's anchor offsets and
// recomputes the fragment hash, returning the failure detail on mismatch.
func validateAnchor(canonicalText string, f domain.Fact) (*FailedExample, bool) {
	if f.AnchorMissing || f.EvidenceAnchor == nil || f.SupportingText == nil {
		return &FailedExample{FactID: f.FactID, Reason: reasonNoAnchor}, false
	}

	a := f.EvidenceAnchor
	if a.CharStart < 0 || a.CharEnd > len(canonicalText) || a.CharStart > a.CharEnd {
		return &FailedExample{FactID: f.FactID, Reason: reasonSliceMismatch}, false
	}

	slice := canonicalText[a.CharStart:a.CharEnd]
	if slice != *f.SupportingText {
		return &FailedExample{FactID: f.FactID, Reason: reasonSliceMismatch}, false
	}

	actualHash := sha256Hex(slice)
	if actualHash != a.FragmentHash {
		return &FailedExample{
			FactID:       f.FactID,
			Reason:       reasonHashMismatch,
			ExpectedHash: a.FragmentHash,
			ActualHash:   actualHash,
		}, false
	}

	return nil, true
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
