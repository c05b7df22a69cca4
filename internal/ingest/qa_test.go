package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/malwarescan/oracle/internal/domain"
)

func textFact(predicate string, anchored bool) *domain.Fact {
	f := &domain.Fact{
		Predicate:     predicate,
		EvidenceType:  domain.EvidenceTextExtraction,
		AnchorMissing: !anchored,
	}
	if anchored {
		supporting := "some supporting text"
		f.SupportingText = &supporting
		f.EvidenceAnchor = &domain.Anchor{}
	}
	return f
}

func structuredFact(predicate string) *domain.Fact {
	return &domain.Fact{Predicate: predicate, EvidenceType: domain.EvidenceStructuredData, AnchorMissing: true}
}

func TestRunQAGate_PassesWithHealthyMetrics(t *testing.T) {
	var textFacts []*domain.Fact
	for i := 0; i < 12; i++ {
		textFacts = append(textFacts, textFact("predicate", true))
	}
	structuredFacts := []*domain.Fact{
		structuredFact("name"),
		structuredFact("description"),
		structuredFact("url"),
	}

	result := RunQAGate(textFacts, structuredFacts, 12, false)
	assert.True(t, result.Pass, "expected pass, got errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestRunQAGate_FailsOnLowGroundedFactRate(t *testing.T) {
	textFacts := []*domain.Fact{textFact("p", true)}
	result := RunQAGate(textFacts, nil, 100, false)
	assert.False(t, result.Pass)
	assert.NotEmpty(t, result.Errors)
	assert.NotEmpty(t, result.FixSuggestions)
}

func TestRunQAGate_VerifiedDomainRelaxesSchemaThreshold(t *testing.T) {
	var textFacts []*domain.Fact
	for i := 0; i < 12; i++ {
		textFacts = append(textFacts, textFact("predicate-"+string(rune('a'+i)), true))
	}

	unverified := RunQAGate(textFacts, nil, 12, false)
	assert.False(t, unverified.Pass)

	verified := RunQAGate(textFacts, nil, 12, true)
	assert.True(t, verified.Pass, "expected pass, got errors: %v", verified.Errors)
}

func TestAnchorCoverage_NoFacts(t *testing.T) {
	assert.Equal(t, 1.0, anchorCoverage(nil))
}

func TestSchemaCoverage_CountsMatchedProperties(t *testing.T) {
	facts := []*domain.Fact{structuredFact("name")}
	cov := schemaCoverage(facts)
	assert.Greater(t, cov, 0.0)
	assert.Less(t, cov, 1.0)
}
