package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/malwarescan/oracle/internal/domain"
)

// FactLine is the NDJSON wire shape for one Fact: the deterministic
// identity, the triple, the evidence, and revision bookkeeping.
type FactLine struct {
	FactID         string         `json:"fact_id"`
	SlotID         string         `json:"slot_id"`
	EntityID       string         `json:"entity_id"`
	Triple         map[string]string `json:"triple"`
	Object         string         `json:"object"`
	SourceURL      string         `json:"source_url"`
	SupportingText *string        `json:"supporting_text,omitempty"`
	EvidenceAnchor *domain.Anchor `json:"evidence_anchor,omitempty"`
	EvidenceType   domain.EvidenceType `json:"evidence_type"`
	AnchorMissing  bool           `json:"anchor_missing"`
	SourcePath     *string        `json:"source_path,omitempty"`
	Revision       int            `json:"revision"`
	UpdatedAt      string         `json:"updated_at"`
}

func toFactLine(f domain.Fact) FactLine {
	return FactLine{
		FactID:         f.FactID,
		SlotID:         f.SlotID,
		EntityID:       f.Subject,
		Triple:         f.Triple(),
		Object:         f.Object,
		SourceURL:      f.SourceURL,
		SupportingText: f.SupportingText,
		EvidenceAnchor: f.EvidenceAnchor,
		EvidenceType:   f.EvidenceType,
		AnchorMissing:  f.AnchorMissing,
		SourcePath:     f.SourcePath,
		Revision:       f.Revision,
		UpdatedAt:      f.UpdatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
}

// WriteFactsNDJSON streams one Fact per line for a domain, optionally
// filtered by evidence_type and/or exact source_url. source_url filtering
// is trailing-slash tolerant; that tolerance is implemented by the store
// query itself.
func (p *Publisher) WriteFactsNDJSON(ctx context.Context, w io.Writer, domainName, evidenceType, sourceURL string) error {
	facts, err := p.store.GetFactsByDomain(ctx, domainName, evidenceType, sourceURL)
	if err != nil {
		return fmt.Errorf("publish: facts: %w", err)
	}

	enc := json.NewEncoder(w)
	for _, f := range facts {
		if err := enc.Encode(toFactLine(f)); err != nil {
			return fmt.Errorf("publish: facts: encode: %w", err)
		}
	}
	return nil
}
