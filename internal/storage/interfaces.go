package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/malwarescan/oracle/internal/domain"
)

// PostgresStore is the durable store's full read/write surface, owning
// Jobs, Events, VerifiedDomains, HtmlSnapshots, Facts, MarkdownVersions,
// and DiscoveredPages per the ownership rules in the data model.
type PostgresStore interface {
	Ping(ctx context.Context) error

	InsertJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, errMsg *string) error
	ListJobs(ctx context.Context, statusFilter string, limit int) ([]domain.Job, error)

	InsertEvent(ctx context.Context, jobID uuid.UUID, eventType string, data []byte) (*domain.Event, error)
	GetEventsSince(ctx context.Context, jobID uuid.UUID, lastID int64, max int) ([]domain.Event, error)

	UpsertVerifiedDomain(ctx context.Context, d *domain.VerifiedDomain) error
	GetVerifiedDomain(ctx context.Context, domainName string) (*domain.VerifiedDomain, error)
	MarkDomainVerified(ctx context.Context, domainName string) error

	UpsertHtmlSnapshot(ctx context.Context, s *domain.HtmlSnapshot) error
	GetLatestSnapshot(ctx context.Context, domainName, sourceURL string) (*domain.HtmlSnapshot, error)

	UpsertFact(ctx context.Context, f *domain.Fact) error
	GetFactsByDomain(ctx context.Context, domainName string, evidenceType, sourceURL string) ([]domain.Fact, error)
	GetFactsBySourceURL(ctx context.Context, domainName, sourceURL string, evidenceType string) ([]domain.Fact, error)
	CountFacts(ctx context.Context, domainName string) (map[string]int, error)

	PublishMarkdownVersion(ctx context.Context, mv *domain.MarkdownVersion) error
	GetActiveMarkdown(ctx context.Context, domainName, path string) (*domain.MarkdownVersion, error)

	UpsertDiscoveredPage(ctx context.Context, p *domain.DiscoveredPage) error
	ListDiscoveredPages(ctx context.Context, domainName string) ([]domain.DiscoveredPage, error)

	// WithTx runs fn inside a single transaction, committing only if fn
	// returns nil. Used by the Ingestor to stage facts/markdown atomically
	// behind the QA gate (see SPEC_FULL.md §9 Ingestor transactionality).
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the subset of PostgresStore operations usable inside WithTx.
type Tx interface {
	UpsertHtmlSnapshot(ctx context.Context, s *domain.HtmlSnapshot) error
	UpsertFact(ctx context.Context, f *domain.Fact) error
	PublishMarkdownVersion(ctx context.Context, mv *domain.MarkdownVersion) error
	UpsertDiscoveredPage(ctx context.Context, p *domain.DiscoveredPage) error
}

// MetricsSink is the durable counter store backing /metrics (repurposed
// ClickHouse client — see DESIGN.md).
type MetricsSink interface {
	Ping(ctx context.Context) error
	IncrCounter(ctx context.Context, name string, delta int64) error
	ReadCounters(ctx context.Context) (map[string]int64, error)
	Close() error
}

// KBCache is the lazily-initialized knowledge-base / domain-status cache
// (Redis).
type KBCache interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// SnapshotArchive is the optional raw-HTML archival target (S3/MinIO).
type SnapshotArchive interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}
