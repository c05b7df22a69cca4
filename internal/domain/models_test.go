package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusRunning, false},
		{JobStatusDone, true},
		{JobStatusError, true},
		{JobStatusCancelled, true},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.status.Terminal())
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to running", JobStatusPending, JobStatusRunning, true},
		{"pending to cancelled", JobStatusPending, JobStatusCancelled, true},
		{"running to done", JobStatusRunning, JobStatusDone, true},
		{"running to error", JobStatusRunning, JobStatusError, true},
		{"done is terminal", JobStatusDone, JobStatusRunning, false},
		{"error is terminal", JobStatusError, JobStatusDone, false},
		{"cancelled is terminal", JobStatusCancelled, JobStatusRunning, false},
		{"same status always allowed", JobStatusRunning, JobStatusRunning, true},
		{"pending cannot skip to done", JobStatusPending, JobStatusDone, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestVerifiedDomain_Verified(t *testing.T) {
	var nilDomain *VerifiedDomain
	assert.False(t, nilDomain.Verified())

	unverified := &VerifiedDomain{Domain: "example.com"}
	assert.False(t, unverified.Verified())
}

func TestFact_Triple(t *testing.T) {
	f := &Fact{Subject: "https://a.example/#org", Predicate: "name", Object: "Acme"}
	tr := f.Triple()
	assert.Equal(t, "https://a.example/#org", tr["subject"])
	assert.Equal(t, "name", tr["predicate"])
	assert.Equal(t, "Acme", tr["object"])
}

func TestJob_Fields(t *testing.T) {
	j := Job{
		ID:      uuid.New(),
		Precog:  "schema",
		Task:    "analyze",
		Status:  JobStatusPending,
		Context: map[string]interface{}{"url": "https://example.com"},
	}
	assert.NotEqual(t, uuid.Nil, j.ID)
	assert.Equal(t, JobStatusPending, j.Status)
	assert.Nil(t, j.Error)
}
