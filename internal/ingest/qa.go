package ingest

import (
	"fmt"

	"github.com/malwarescan/oracle/internal/domain"
)

// Thresholds below minGroundedFactRate/minAtomicityRate/minAnchorCoverage
// are deliberately conservative defaults; verified domains only relax the
// schema-coverage bound per spec, not these.
const (
	minGroundedFactRate = 0.8
	minAtomicityRate    = 0.5
	minAnchorCoverage   = 0.9
	minSchemaCoverage   = 0.5
	minHopGraphDensity  = 0.1
)

// QAResult is the outcome of the QA gate: pass/fail plus the metrics and,
// on failure, the error list and fix suggestions returned to the caller.
type QAResult struct {
	Pass              bool     `json:"pass"`
	GroundedFactRate   float64  `json:"grounded_fact_rate"`
	AtomicityRate      float64  `json:"atomicity_rate"`
	SchemaCoverage     float64  `json:"schema_coverage"`
	HopGraphDensity    float64  `json:"hop_graph_density"`
	AnchorCoverage     float64  `json:"anchor_coverage"`
	Errors             []string `json:"errors,omitempty"`
	FixSuggestions     []string `json:"fix_suggestions,omitempty"`
}

// expectedSchemaProperties is the minimal in-memory KB stub: the set of
// schema.org properties a well-formed page is expected to carry, used only
// to compute schema_coverage. No external knowledge base is queried.
var expectedSchemaProperties = []string{"name", "description", "url"}

// RunQAGate computes the QA metrics over one ingest's emitted facts and
// reports pass/fail. verified relaxes the schema-coverage threshold to 0
// per spec (a domain that proved ownership is trusted to omit structured
// markup without failing ingestion).
func RunQAGate(textFacts, structuredFacts []*domain.Fact, candidatesConsidered int, verified bool) QAResult {
	result := QAResult{}

	result.GroundedFactRate = rate(len(textFacts), candidatesConsidered)
	result.AtomicityRate = atomicityRate(textFacts)
	result.AnchorCoverage = anchorCoverage(textFacts)
	result.SchemaCoverage = schemaCoverage(structuredFacts)
	result.HopGraphDensity = hopGraphDensity(textFacts, structuredFacts)

	schemaThreshold := minSchemaCoverage
	if verified {
		schemaThreshold = 0
	}

	result.Pass = true
	if result.GroundedFactRate < minGroundedFactRate {
		result.Pass = false
		result.Errors = append(result.Errors, fmt.Sprintf("grounded_fact_rate %.2f below threshold %.2f", result.GroundedFactRate, minGroundedFactRate))
		result.FixSuggestions = append(result.FixSuggestions, "increase sentence candidate yield or relax atomization filters")
	}
	if result.AtomicityRate < minAtomicityRate {
		result.Pass = false
		result.Errors = append(result.Errors, fmt.Sprintf("atomicity_rate %.2f below threshold %.2f", result.AtomicityRate, minAtomicityRate))
		result.FixSuggestions = append(result.FixSuggestions, "split compound sentences into single-assertion facts")
	}
	if result.AnchorCoverage < minAnchorCoverage {
		result.Pass = false
		result.Errors = append(result.Errors, fmt.Sprintf("anchor_coverage %.2f below threshold %.2f", result.AnchorCoverage, minAnchorCoverage))
		result.FixSuggestions = append(result.FixSuggestions, "review canonical extraction for text facts missing a valid anchor")
	}
	if result.SchemaCoverage < schemaThreshold {
		result.Pass = false
		result.Errors = append(result.Errors, fmt.Sprintf("schema_coverage %.2f below threshold %.2f", result.SchemaCoverage, schemaThreshold))
		result.FixSuggestions = append(result.FixSuggestions, "add JSON-LD or microdata for name/description/url, or verify domain ownership")
	}
	if result.HopGraphDensity < minHopGraphDensity {
		result.Pass = false
		result.Errors = append(result.Errors, fmt.Sprintf("hop_graph_density %.2f below threshold %.2f", result.HopGraphDensity, minHopGraphDensity))
		result.FixSuggestions = append(result.FixSuggestions, "increase distinct subjects/predicates linking facts together")
	}

	return result
}

func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 1.0
	}
	return float64(numerator) / float64(denominator)
}

// atomicityRate approximates "one assertion per fact" by penalizing
// overlong supporting text, a proxy for compound/run-on sentences.
func atomicityRate(textFacts []*domain.Fact) float64 {
	if len(textFacts) == 0 {
		return 1.0
	}
	atomic := 0
	for _, f := range textFacts {
		if f.SupportingText != nil && len(*f.SupportingText) <= maxSentenceLen {
			atomic++
		}
	}
	return rate(atomic, len(textFacts))
}

func anchorCoverage(textFacts []*domain.Fact) float64 {
	if len(textFacts) == 0 {
		return 1.0
	}
	anchored := 0
	for _, f := range textFacts {
		if !f.AnchorMissing && f.EvidenceAnchor != nil {
			anchored++
		}
	}
	return rate(anchored, len(textFacts))
}

func schemaCoverage(structuredFacts []*domain.Fact) float64 {
	seen := make(map[string]bool, len(structuredFacts))
	for _, f := range structuredFacts {
		seen[f.Predicate] = true
	}
	if len(expectedSchemaProperties) == 0 {
		return 1.0
	}
	matched := 0
	for _, prop := range expectedSchemaProperties {
		if seen[prop] {
			matched++
		}
	}
	return rate(matched, len(expectedSchemaProperties))
}

// hopGraphDensity approximates "edges/units" as the ratio of distinct
// predicates (edges in the entity graph) to total facts (units).
func hopGraphDensity(textFacts, structuredFacts []*domain.Fact) float64 {
	total := len(textFacts) + len(structuredFacts)
	if total == 0 {
		return 0
	}
	predicates := make(map[string]bool)
	for _, f := range textFacts {
		predicates[f.Predicate] = true
	}
	for _, f := range structuredFacts {
		predicates[f.Predicate] = true
	}
	return float64(len(predicates)) / float64(total)
}
