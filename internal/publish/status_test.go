package publish

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/testutil"
)

func anchoredTextFact(id string) domain.Fact {
	supporting := "some supporting text for fact " + id
	return domain.Fact{
		FactID: id, Domain: "acme.com", Subject: "acme.com", Predicate: "about-" + id,
		Object: supporting, SupportingText: &supporting, EvidenceType: domain.EvidenceTextExtraction,
		EvidenceAnchor: &domain.Anchor{CharStart: 0, CharEnd: len(supporting), FragmentHash: "h" + id},
	}
}

func TestStatus_CitationGradeWhenTenAnchoredFacts(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	now := time.Now()
	store.On("GetVerifiedDomain", mock.Anything, "acme.com").Return(&domain.VerifiedDomain{Domain: "acme.com", VerifiedAt: &now}, nil)
	store.On("CountFacts", mock.Anything, "acme.com").Return(map[string]int{"text_extraction": 10, "structured_data": 2}, nil)

	var facts []domain.Fact
	for i := 0; i < 10; i++ {
		facts = append(facts, anchoredTextFact(fmt.Sprintf("f%d", i)))
	}
	store.On("GetFactsByDomain", mock.Anything, "acme.com", "text_extraction", "").Return(facts, nil)
	store.On("ListDiscoveredPages", mock.Anything, "acme.com").Return([]domain.DiscoveredPage{{Domain: "acme.com", PageURL: "https://acme.com/"}}, nil)
	store.On("GetFactsByDomain", mock.Anything, "acme.com", "", "").Return(append(facts, domain.Fact{Subject: "acme.com", Predicate: "name", Object: "Acme"}), nil)

	p := New(store, nil)
	status, err := p.Status(t.Context(), "acme.com")
	require.NoError(t, err)
	assert.True(t, status.Verified)
	assert.Equal(t, 1.0, status.AnchorCoverage)
	assert.Equal(t, domain.TierFullProtocol, status.Tier)
}

func TestStatus_BestEffortWhenFewFacts(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetVerifiedDomain", mock.Anything, "new.com").Return((*domain.VerifiedDomain)(nil), fmt.Errorf("postgres: verified domain not found: %s", "new.com"))
	store.On("CountFacts", mock.Anything, "new.com").Return(map[string]int{"text_extraction": 2}, nil)
	store.On("GetFactsByDomain", mock.Anything, "new.com", "text_extraction", "").Return([]domain.Fact{anchoredTextFact("a")}, nil)
	store.On("ListDiscoveredPages", mock.Anything, "new.com").Return([]domain.DiscoveredPage{}, nil)
	store.On("GetFactsByDomain", mock.Anything, "new.com", "", "").Return([]domain.Fact{anchoredTextFact("a")}, nil)

	p := New(store, nil)
	status, err := p.Status(t.Context(), "new.com")
	require.NoError(t, err)
	assert.False(t, status.Verified)
	assert.Equal(t, domain.TierBestEffort, status.Tier)
}

func TestStatus_CitationGradeFailsOnLowAnchorCoverage(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetVerifiedDomain", mock.Anything, "sparse.com").Return((*domain.VerifiedDomain)(nil), fmt.Errorf("postgres: verified domain not found: %s", "sparse.com"))
	store.On("CountFacts", mock.Anything, "sparse.com").Return(map[string]int{"text_extraction": 10}, nil)

	var facts []domain.Fact
	for i := 0; i < 10; i++ {
		f := anchoredTextFact(fmt.Sprintf("f%d", i))
		if i < 6 {
			f.AnchorMissing = true
			f.EvidenceAnchor = nil
		}
		facts = append(facts, f)
	}
	store.On("GetFactsByDomain", mock.Anything, "sparse.com", "text_extraction", "").Return(facts, nil)
	store.On("ListDiscoveredPages", mock.Anything, "sparse.com").Return([]domain.DiscoveredPage{}, nil)
	store.On("GetFactsByDomain", mock.Anything, "sparse.com", "", "").Return(facts, nil)

	p := New(store, nil)
	status, err := p.Status(t.Context(), "sparse.com")
	require.NoError(t, err)
	assert.Equal(t, domain.TierBestEffort, status.Tier)
}
