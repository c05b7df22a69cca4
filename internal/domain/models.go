// Package domain holds the entity types shared across storage, registry,
// worker, ingest, and publish packages.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is one a job cannot leave.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusDone, JobStatusError, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// validTransitions enumerates the monotone status graph a Job may follow.
var validTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {JobStatusRunning: true, JobStatusCancelled: true, JobStatusError: true},
	JobStatusRunning: {JobStatusDone: true, JobStatusError: true, JobStatusCancelled: true},
}

// CanTransition reports whether from -> to is a legal status transition.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	return validTransitions[from][to]
}

// Job is a single precog invocation tracked end to end.
type Job struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	Precog    string                 `json:"precog" db:"precog"`
	Task      string                 `json:"task" db:"task"`
	Context   map[string]interface{} `json:"context" db:"context"`
	Status    JobStatus              `json:"status" db:"status"`
	Error     *string                `json:"error,omitempty" db:"error"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// Event is a single append-only occurrence in a job's event log.
type Event struct {
	ID    int64           `json:"id" db:"id"`
	JobID uuid.UUID       `json:"job_id" db:"job_id"`
	Type  string          `json:"type" db:"type"`
	Data  json.RawMessage `json:"data" db:"data"`
	Ts    time.Time       `json:"ts" db:"ts"`
}

// Event payload type names carried over both SSE and NDJSON.
const (
	EventAck            = "ack"
	EventGroundingChunk = "grounding.chunk"
	EventThinking       = "thinking"
	EventAnswerDelta    = "answer.delta"
	EventAnswerComplete = "answer.complete"
	EventComplete       = "complete"
	EventError          = "error"
	EventHeartbeat      = "heartbeat"
	EventTimeout        = "timeout"
)

// VerifiedDomain records domain-ownership proof and QA relaxation state.
type VerifiedDomain struct {
	Domain            string     `json:"domain" db:"domain"`
	VerificationToken string     `json:"verification_token" db:"verification_token"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	ProtocolVersion   string     `json:"protocol_version" db:"protocol_version"`
	LastIngestedAt    *time.Time `json:"last_ingested_at,omitempty" db:"last_ingested_at"`
	QATier            string     `json:"qa_tier" db:"qa_tier"`
	QAPass            bool       `json:"qa_pass" db:"qa_pass"`
}

// Verified reports whether domain ownership has been proven.
func (d *VerifiedDomain) Verified() bool {
	return d != nil && d.VerifiedAt != nil
}

// HtmlSnapshot is the raw and canonicalized capture of one fetch.
type HtmlSnapshot struct {
	Domain                 string    `json:"domain" db:"domain"`
	SourceURL              string    `json:"source_url" db:"source_url"`
	HTML                   string    `json:"html" db:"html"`
	CanonicalExtractedText string    `json:"canonical_extracted_text" db:"canonical_extracted_text"`
	ExtractionTextHash     string    `json:"extraction_text_hash" db:"extraction_text_hash"`
	ExtractionMethod       string    `json:"extraction_method" db:"extraction_method"`
	FetchedAt              time.Time `json:"fetched_at" db:"fetched_at"`
}

// EvidenceType classifies how a Fact's value was obtained.
type EvidenceType string

const (
	EvidenceTextExtraction EvidenceType = "text_extraction"
	EvidenceStructuredData EvidenceType = "structured_data"
	EvidenceUnknown        EvidenceType = "unknown"
)

// Anchor binds a fact's supporting text to a specific canonical extraction.
type Anchor struct {
	CharStart          int    `json:"char_start"`
	CharEnd            int    `json:"char_end"`
	FragmentHash       string `json:"fragment_hash"`
	ExtractionTextHash string `json:"extraction_text_hash"`
}

// Fact (a "crouton") is one atomic, citeable assertion extracted from a page.
type Fact struct {
	CroutonID      string       `json:"crouton_id" db:"crouton_id"`
	Domain         string       `json:"domain" db:"domain"`
	SourceURL      string       `json:"source_url" db:"source_url"`
	SlotID         string       `json:"slot_id" db:"slot_id"`
	FactID         string       `json:"fact_id" db:"fact_id"`
	Revision       int          `json:"revision" db:"revision"`
	PreviousFactID *string      `json:"previous_fact_id,omitempty" db:"previous_fact_id"`
	Subject        string       `json:"subject" db:"subject"`
	Predicate      string       `json:"predicate" db:"predicate"`
	Object         string       `json:"object" db:"object"`
	Text           string       `json:"text" db:"text"`
	SupportingText *string      `json:"supporting_text,omitempty" db:"supporting_text"`
	EvidenceAnchor *Anchor      `json:"evidence_anchor,omitempty" db:"evidence_anchor"`
	EvidenceType   EvidenceType `json:"evidence_type" db:"evidence_type"`
	SourcePath     *string      `json:"source_path,omitempty" db:"source_path"`
	AnchorMissing  bool         `json:"anchor_missing" db:"anchor_missing"`
	Confidence     float64      `json:"confidence" db:"confidence"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// Triple returns the fact's subject/predicate/object in NDJSON shape.
func (f *Fact) Triple() map[string]string {
	return map[string]string{"subject": f.Subject, "predicate": f.Predicate, "object": f.Object}
}

// MarkdownVersion is one generated Markdown rendering of a domain+path mirror.
type MarkdownVersion struct {
	Domain          string    `json:"domain" db:"domain"`
	Path            string    `json:"path" db:"path"`
	Content         string    `json:"content" db:"content"`
	ContentHash     string    `json:"content_hash" db:"content_hash"`
	GeneratedAt     time.Time `json:"generated_at" db:"generated_at"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	MarkdownVersion string    `json:"markdown_version" db:"markdown_version"`
	ProtocolVersion string    `json:"protocol_version" db:"protocol_version"`
}

// DiscoveryMethod records how a page was found during discovery.
type DiscoveryMethod string

const (
	DiscoveryHTMLLink DiscoveryMethod = "html_link"
	DiscoveryHTTPLink DiscoveryMethod = "http_link"
	DiscoveryBoth     DiscoveryMethod = "both"
	DiscoveryNone     DiscoveryMethod = "none"
)

// DiscoveredPage is a page surfaced via link-following during discovery.
type DiscoveredPage struct {
	Domain              string          `json:"domain" db:"domain"`
	PageURL             string          `json:"page_url" db:"page_url"`
	AlternateHref       *string         `json:"alternate_href,omitempty" db:"alternate_href"`
	DiscoveredMirrorURL *string         `json:"discovered_mirror_url,omitempty" db:"discovered_mirror_url"`
	DiscoveryMethod     DiscoveryMethod `json:"discovery_method" db:"discovery_method"`
	DiscoveredAt        time.Time       `json:"discovered_at" db:"discovered_at"`
	IngestionID         *uuid.UUID      `json:"ingestion_id,omitempty" db:"ingestion_id"`
}

// Tier is the coarse quality label derived from anchor coverage and
// protocol version alignment.
type Tier string

const (
	TierBestEffort    Tier = "best_effort"
	TierCitationGrade Tier = "citation_grade"
	TierFullProtocol  Tier = "full_protocol"
)
