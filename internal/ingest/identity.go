package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/malwarescan/oracle/internal/domain"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SlotID derives a fact's slot identifier from the triple's stable
// coordinates: domain, source page, subject, and predicate. Two facts
// sharing a slot are revisions of the same assertion.
func SlotID(domainName, sourceURL, subject, predicate string) string {
	return sha256Hex(domainName + "|" + sourceURL + "|" + subject + "|" + predicate)
}

// FactID derives the deterministic identity of a fact from its slot and
// object value. A text-extraction fact also folds in its fragment hash, so
// any edit to the anchored substring yields a new fact_id (and a revision
// chain via previous_fact_id) rather than silently aliasing stale text.
func FactID(slotID, object string, fragmentHash *string) string {
	key := slotID + "|" + object + "|"
	if fragmentHash != nil {
		key += *fragmentHash
	}
	return sha256Hex(key)
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// predicateSlug derives a stable predicate name from a section heading.
// Sentence facts have no schema.org-style property, so the heading under
// which a sentence appears stands in for its predicate.
func predicateSlug(heading string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(heading)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "states"
	}
	return slug
}

// BuildTextFacts assembles text-extraction Facts from validated sentence
// candidates. Subject is the domain itself (sentence facts describe the
// page's owner, not a specific schema.org entity); predicate is derived
// from the enclosing section heading; object is the sentence text.
func BuildTextFacts(domainName, sourceURL, extractionTextHash string, candidates []Candidate) []*domain.Fact {
	facts := make([]*domain.Fact, 0, len(candidates))
	for _, c := range candidates {
		predicate := predicateSlug(c.Heading)
		facts = append(facts, newTextFact(domainName, sourceURL, extractionTextHash, domainName, predicate, c))
	}
	return facts
}

// newTextFact builds a Fact from a validated sentence candidate.
func newTextFact(domainName, sourceURL, extractionTextHash, subject, predicate string, c Candidate) *domain.Fact {
	object := c.Text
	slotID := SlotID(domainName, sourceURL, subject, predicate)
	factID := FactID(slotID, object, &c.FragmentHash)
	supportingText := c.Text

	return &domain.Fact{
		CroutonID: factID,
		Domain:    domainName,
		SourceURL: sourceURL,
		SlotID:    slotID,
		FactID:    factID,
		// Revision/PreviousFactID default to a brand-new slot; UpsertFact
		// resolves the real chain against the slot's stored history before
		// committing (advancing it when a prior revision's fact_id differs,
		// carrying it forward unchanged on an identical re-ingest).
		Revision:  1,
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
		Text:      c.Text,
		SupportingText: &supportingText,
		EvidenceAnchor: &domain.Anchor{
			CharStart:          c.CharStart,
			CharEnd:            c.CharEnd,
			FragmentHash:       c.FragmentHash,
			ExtractionTextHash: extractionTextHash,
		},
		EvidenceType:  domain.EvidenceTextExtraction,
		AnchorMissing: false,
		Confidence:    0.8,
	}
}

// BuildStructuredFacts assembles structured-data Facts, one per harvested
// field, with source_path the JSON pointer "/<item index>/<field name>"
// into the harvested item list.
func BuildStructuredFacts(domainName, sourceURL string, items []StructuredItem) []*domain.Fact {
	var facts []*domain.Fact
	for i, item := range items {
		for property, value := range item.Fields {
			sourcePath := fmt.Sprintf("/%d/%s", i, property)
			facts = append(facts, newStructuredFact(domainName, sourceURL, item, property, value, sourcePath))
		}
	}
	return facts
}

// newStructuredFact builds a Fact from one field of a harvested structured
// item. sourcePath is the JSON pointer into the item (e.g. "/0/name").
func newStructuredFact(domainName, sourceURL string, item StructuredItem, property, value, sourcePath string) *domain.Fact {
	subject := item.ID
	slotID := SlotID(domainName, sourceURL, subject, property)
	factID := FactID(slotID, value, nil)
	path := sourcePath

	return &domain.Fact{
		CroutonID:     factID,
		Domain:        domainName,
		SourceURL:     sourceURL,
		SlotID:        slotID,
		FactID:        factID,
		// See newTextFact: UpsertFact resolves the real revision/chain.
		Revision:      1,
		Subject:       subject,
		Predicate:     property,
		Object:        value,
		Text:          value,
		EvidenceType:  domain.EvidenceStructuredData,
		SourcePath:    &path,
		AnchorMissing: true,
		Confidence:    0.6,
	}
}
