package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/malwarescan/oracle/internal/domain"
)

// IsNotFound returns true if the error indicates a record was not found.
// This checks for both pgx.ErrNoRows and the "not found" error strings
// produced by this package's query methods.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if err == pgx.ErrNoRows {
		return true
	}
	return strings.Contains(err.Error(), "not found")
}

// PostgresClient wraps a pgx connection pool and implements PostgresStore.
type PostgresClient struct {
	pool querier
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the Tx
// adapter below reuse the same query bodies as the top-level client.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// NewPostgresClient creates a new PostgreSQL client from the given DSN.
func NewPostgresClient(ctx context.Context, dsn string) (*PostgresClient, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &PostgresClient{pool: pool}, nil
}

// Close releases all connections in the pool. No-op when wrapping a Tx.
func (p *PostgresClient) Close() {
	if pool, ok := p.pool.(*pgxpool.Pool); ok {
		pool.Close()
	}
}

// Ping verifies connectivity to PostgreSQL.
func (p *PostgresClient) Ping(ctx context.Context) error {
	pool, ok := p.pool.(*pgxpool.Pool)
	if !ok {
		return nil
	}
	return pool.Ping(ctx)
}

// --------------------------------------------------------------------------
// Jobs
// --------------------------------------------------------------------------

// InsertJob persists a newly submitted job in pending status.
func (p *PostgresClient) InsertJob(ctx context.Context, j *domain.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = domain.JobStatusPending
	}

	ctxJSON, err := json.Marshal(j.Context)
	if err != nil {
		return fmt.Errorf("postgres: marshal job context: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO jobs (id, precog, task, context, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, j.ID, j.Precog, j.Task, ctxJSON, j.Status, j.Error, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by its ID.
func (p *PostgresClient) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	var j domain.Job
	var ctxJSON []byte
	err := p.pool.QueryRow(ctx, `
		SELECT id, precog, task, context, status, error, created_at, updated_at
		FROM jobs WHERE id = $1
	`, jobID).Scan(&j.ID, &j.Precog, &j.Task, &ctxJSON, &j.Status, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("postgres: job not found: %s", jobID)
		}
		return nil, fmt.Errorf("postgres: get job: %w", err)
	}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &j.Context); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal job context: %w", err)
		}
	}
	return &j, nil
}

// UpdateJobStatus transitions a job to a new status, rejecting illegal
// transitions per domain.CanTransition.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, errMsg *string) error {
	current, err := p.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(current.Status, status) {
		return fmt.Errorf("postgres: illegal job transition %s -> %s for job %s", current.Status, status, jobID)
	}

	now := time.Now().UTC()
	tag, err := p.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $1, error = $2, updated_at = $3
		WHERE id = $4
	`, status, errMsg, now, jobID)
	if err != nil {
		return fmt.Errorf("postgres: update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: job not found: %s", jobID)
	}
	return nil
}

// ListJobs returns jobs optionally filtered by status, newest first.
func (p *PostgresClient) ListJobs(ctx context.Context, statusFilter string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if statusFilter != "" {
		rows, err = p.pool.Query(ctx, `
			SELECT id, precog, task, context, status, error, created_at, updated_at
			FROM jobs WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, statusFilter, limit)
	} else {
		rows, err = p.pool.Query(ctx, `
			SELECT id, precog, task, context, status, error, created_at, updated_at
			FROM jobs
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var j domain.Job
		var ctxJSON []byte
		if err := rows.Scan(&j.ID, &j.Precog, &j.Task, &ctxJSON, &j.Status, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		if len(ctxJSON) > 0 {
			_ = json.Unmarshal(ctxJSON, &j.Context)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// InsertEvent appends an event to a job's log. The id column is a
// per-job monotone sequence assigned by a BIGSERIAL scoped with a
// unique index on (job_id, id) — callers rely on ascending order for
// the SSE/NDJSON resume cursor.
func (p *PostgresClient) InsertEvent(ctx context.Context, jobID uuid.UUID, eventType string, data []byte) (*domain.Event, error) {
	var e domain.Event
	err := p.pool.QueryRow(ctx, `
		INSERT INTO events (job_id, type, data, ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id, job_id, type, data, ts
	`, jobID, eventType, data, time.Now().UTC()).Scan(&e.ID, &e.JobID, &e.Type, &e.Data, &e.Ts)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert event: %w", err)
	}
	return &e, nil
}

// GetEventsSince returns up to max events for jobID with id > lastID.
func (p *PostgresClient) GetEventsSince(ctx context.Context, jobID uuid.UUID, lastID int64, max int) ([]domain.Event, error) {
	if max <= 0 {
		max = 1000
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, job_id, type, data, ts
		FROM events
		WHERE job_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`, jobID, lastID, max)
	if err != nil {
		return nil, fmt.Errorf("postgres: get events since: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.JobID, &e.Type, &e.Data, &e.Ts); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --------------------------------------------------------------------------
// Verified domains
// --------------------------------------------------------------------------

func (p *PostgresClient) UpsertVerifiedDomain(ctx context.Context, d *domain.VerifiedDomain) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO verified_domains (domain, verification_token, verified_at, protocol_version, last_ingested_at, qa_tier, qa_pass)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (domain) DO UPDATE SET
			verification_token = EXCLUDED.verification_token,
			verified_at = EXCLUDED.verified_at,
			protocol_version = EXCLUDED.protocol_version,
			last_ingested_at = EXCLUDED.last_ingested_at,
			qa_tier = EXCLUDED.qa_tier,
			qa_pass = EXCLUDED.qa_pass
	`, d.Domain, d.VerificationToken, d.VerifiedAt, d.ProtocolVersion, d.LastIngestedAt, d.QATier, d.QAPass)
	if err != nil {
		return fmt.Errorf("postgres: upsert verified domain: %w", err)
	}
	return nil
}

func (p *PostgresClient) GetVerifiedDomain(ctx context.Context, domainName string) (*domain.VerifiedDomain, error) {
	var d domain.VerifiedDomain
	err := p.pool.QueryRow(ctx, `
		SELECT domain, verification_token, verified_at, protocol_version, last_ingested_at, qa_tier, qa_pass
		FROM verified_domains WHERE domain = $1
	`, domainName).Scan(&d.Domain, &d.VerificationToken, &d.VerifiedAt, &d.ProtocolVersion, &d.LastIngestedAt, &d.QATier, &d.QAPass)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("postgres: verified domain not found: %s", domainName)
		}
		return nil, fmt.Errorf("postgres: get verified domain: %w", err)
	}
	return &d, nil
}

func (p *PostgresClient) MarkDomainVerified(ctx context.Context, domainName string) error {
	now := time.Now().UTC()
	tag, err := p.pool.Exec(ctx, `
		UPDATE verified_domains SET verified_at = $1 WHERE domain = $2
	`, now, domainName)
	if err != nil {
		return fmt.Errorf("postgres: mark domain verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: verified domain not found: %s", domainName)
	}
	return nil
}

// --------------------------------------------------------------------------
// HTML snapshots
// --------------------------------------------------------------------------

func (p *PostgresClient) UpsertHtmlSnapshot(ctx context.Context, s *domain.HtmlSnapshot) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO html_snapshots (domain, source_url, html, canonical_extracted_text, extraction_text_hash, extraction_method, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (domain, source_url) DO UPDATE SET
			html = EXCLUDED.html,
			canonical_extracted_text = EXCLUDED.canonical_extracted_text,
			extraction_text_hash = EXCLUDED.extraction_text_hash,
			extraction_method = EXCLUDED.extraction_method,
			fetched_at = EXCLUDED.fetched_at
	`, s.Domain, s.SourceURL, s.HTML, s.CanonicalExtractedText, s.ExtractionTextHash, s.ExtractionMethod, s.FetchedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert html snapshot: %w", err)
	}
	return nil
}

func (p *PostgresClient) GetLatestSnapshot(ctx context.Context, domainName, sourceURL string) (*domain.HtmlSnapshot, error) {
	var s domain.HtmlSnapshot
	err := p.pool.QueryRow(ctx, `
		SELECT domain, source_url, html, canonical_extracted_text, extraction_text_hash, extraction_method, fetched_at
		FROM html_snapshots WHERE domain = $1 AND source_url = $2
	`, domainName, sourceURL).Scan(&s.Domain, &s.SourceURL, &s.HTML, &s.CanonicalExtractedText, &s.ExtractionTextHash, &s.ExtractionMethod, &s.FetchedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("postgres: snapshot not found: %s %s", domainName, sourceURL)
		}
		return nil, fmt.Errorf("postgres: get latest snapshot: %w", err)
	}
	return &s, nil
}

// --------------------------------------------------------------------------
// Facts
// --------------------------------------------------------------------------

func (p *PostgresClient) UpsertFact(ctx context.Context, f *domain.Fact) error {
	var anchorJSON []byte
	var err error
	if f.EvidenceAnchor != nil {
		anchorJSON, err = json.Marshal(f.EvidenceAnchor)
		if err != nil {
			return fmt.Errorf("postgres: marshal fact anchor: %w", err)
		}
	}
	f.UpdatedAt = time.Now().UTC()

	if err := p.resolveFactRevision(ctx, f); err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO facts (
			crouton_id, domain, source_url, slot_id, fact_id, revision, previous_fact_id,
			subject, predicate, object, text, supporting_text, evidence_anchor, evidence_type,
			source_path, anchor_missing, confidence, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (crouton_id) DO UPDATE SET
			subject = EXCLUDED.subject,
			predicate = EXCLUDED.predicate,
			object = EXCLUDED.object,
			text = EXCLUDED.text,
			supporting_text = EXCLUDED.supporting_text,
			evidence_anchor = EXCLUDED.evidence_anchor,
			evidence_type = EXCLUDED.evidence_type,
			source_path = EXCLUDED.source_path,
			anchor_missing = EXCLUDED.anchor_missing,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at
	`, f.CroutonID, f.Domain, f.SourceURL, f.SlotID, f.FactID, f.Revision, f.PreviousFactID,
		f.Subject, f.Predicate, f.Object, f.Text, f.SupportingText, anchorJSON, f.EvidenceType,
		f.SourcePath, f.AnchorMissing, f.Confidence, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert fact: %w", err)
	}
	return nil
}

// resolveFactRevision implements the slot-latest-revision discipline: slot_id
// is a stable identity for "this subject+predicate on this page" across text
// edits, while fact_id (and crouton_id, which equals it) changes whenever the
// anchored content changes. This looks up the slot's current latest revision
// within the caller's transaction, row-locking it against concurrent
// ingests of the same slot:
//
//   - no prior row for the slot: this is a new fact, revision 1.
//   - prior row has the same fact_id: unchanged re-ingest -- carry the
//     existing chain forward unmodified; the INSERT's ON CONFLICT path
//     below only refreshes updated_at for this case, per the idempotent
//     upsert property.
//   - prior row has a different fact_id: the anchored text changed --
//     advance the chain, recording the prior fact_id.
func (p *PostgresClient) resolveFactRevision(ctx context.Context, f *domain.Fact) error {
	var priorFactID string
	var priorPreviousFactID *string
	var priorRevision int

	err := p.pool.QueryRow(ctx, `
		SELECT fact_id, previous_fact_id, revision
		FROM facts
		WHERE slot_id = $1
		ORDER BY revision DESC
		LIMIT 1
		FOR UPDATE
	`, f.SlotID).Scan(&priorFactID, &priorPreviousFactID, &priorRevision)
	if err == pgx.ErrNoRows {
		f.Revision = 1
		f.PreviousFactID = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("postgres: resolve fact revision: %w", err)
	}

	if priorFactID == f.FactID {
		f.Revision = priorRevision
		f.PreviousFactID = priorPreviousFactID
		return nil
	}

	f.Revision = priorRevision + 1
	f.PreviousFactID = &priorFactID
	return nil
}

func scanFactRow(row pgx.Row) (*domain.Fact, error) {
	var f domain.Fact
	var anchorJSON []byte
	err := row.Scan(
		&f.CroutonID, &f.Domain, &f.SourceURL, &f.SlotID, &f.FactID, &f.Revision, &f.PreviousFactID,
		&f.Subject, &f.Predicate, &f.Object, &f.Text, &f.SupportingText, &anchorJSON, &f.EvidenceType,
		&f.SourcePath, &f.AnchorMissing, &f.Confidence, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(anchorJSON) > 0 {
		var a domain.Anchor
		if err := json.Unmarshal(anchorJSON, &a); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal fact anchor: %w", err)
		}
		f.EvidenceAnchor = &a
	}
	return &f, nil
}

const factColumns = `
	crouton_id, domain, source_url, slot_id, fact_id, revision, previous_fact_id,
	subject, predicate, object, text, supporting_text, evidence_anchor, evidence_type,
	source_path, anchor_missing, confidence, updated_at
`

// GetFactsByDomain returns current-revision facts for a domain, optionally
// filtered by evidence_type and/or exact source_url. A slot's older
// revisions stay in the table for the previous_fact_id chain but are
// excluded here -- only the max-revision row per slot_id is "active".
func (p *PostgresClient) GetFactsByDomain(ctx context.Context, domainName string, evidenceType, sourceURL string) ([]domain.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts WHERE domain = $1
		AND revision = (SELECT MAX(revision) FROM facts latest WHERE latest.slot_id = facts.slot_id)`
	args := []interface{}{domainName}
	if evidenceType != "" {
		args = append(args, evidenceType)
		query += fmt.Sprintf(" AND evidence_type = $%d", len(args))
	}
	if sourceURL != "" {
		args = append(args, strings.TrimSuffix(sourceURL, "/"))
		query += fmt.Sprintf(" AND rtrim(source_url, '/') = $%d", len(args))
	}
	query += " ORDER BY fact_id ASC"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: get facts by domain: %w", err)
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		f, err := scanFactRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan fact: %w", err)
		}
		facts = append(facts, *f)
	}
	return facts, rows.Err()
}

// GetFactsBySourceURL is the trailing-slash-tolerant lookup used by the
// extract publisher for a single page.
func (p *PostgresClient) GetFactsBySourceURL(ctx context.Context, domainName, sourceURL string, evidenceType string) ([]domain.Fact, error) {
	return p.GetFactsByDomain(ctx, domainName, evidenceType, sourceURL)
}

// CountFacts returns the per-evidence-type active-revision fact count for a
// domain (see GetFactsByDomain on what "active" means for a slot).
func (p *PostgresClient) CountFacts(ctx context.Context, domainName string) (map[string]int, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT evidence_type, COUNT(*) FROM facts
		WHERE domain = $1
		AND revision = (SELECT MAX(revision) FROM facts latest WHERE latest.slot_id = facts.slot_id)
		GROUP BY evidence_type
	`, domainName)
	if err != nil {
		return nil, fmt.Errorf("postgres: count facts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var evidenceType string
		var count int
		if err := rows.Scan(&evidenceType, &count); err != nil {
			return nil, fmt.Errorf("postgres: scan fact count: %w", err)
		}
		counts[evidenceType] = count
	}
	return counts, rows.Err()
}

// --------------------------------------------------------------------------
// Markdown versions
// --------------------------------------------------------------------------

// PublishMarkdownVersion inserts a new version and deactivates any prior
// active version for the same (domain, path), enforcing the single-active
// invariant within the caller's transaction.
func (p *PostgresClient) PublishMarkdownVersion(ctx context.Context, mv *domain.MarkdownVersion) error {
	if mv.IsActive {
		if _, err := p.pool.Exec(ctx, `
			UPDATE markdown_versions SET is_active = false
			WHERE domain = $1 AND path = $2 AND is_active = true
		`, mv.Domain, mv.Path); err != nil {
			return fmt.Errorf("postgres: deactivate prior markdown version: %w", err)
		}
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO markdown_versions (domain, path, content, content_hash, generated_at, is_active, markdown_version, protocol_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (domain, path, content_hash) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			generated_at = EXCLUDED.generated_at
	`, mv.Domain, mv.Path, mv.Content, mv.ContentHash, mv.GeneratedAt, mv.IsActive, mv.MarkdownVersion, mv.ProtocolVersion)
	if err != nil {
		return fmt.Errorf("postgres: publish markdown version: %w", err)
	}
	return nil
}

func (p *PostgresClient) GetActiveMarkdown(ctx context.Context, domainName, path string) (*domain.MarkdownVersion, error) {
	var mv domain.MarkdownVersion
	err := p.pool.QueryRow(ctx, `
		SELECT domain, path, content, content_hash, generated_at, is_active, markdown_version, protocol_version
		FROM markdown_versions
		WHERE domain = $1 AND path = $2 AND is_active = true
	`, domainName, path).Scan(&mv.Domain, &mv.Path, &mv.Content, &mv.ContentHash, &mv.GeneratedAt, &mv.IsActive, &mv.MarkdownVersion, &mv.ProtocolVersion)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("postgres: active markdown not found: %s %s", domainName, path)
		}
		return nil, fmt.Errorf("postgres: get active markdown: %w", err)
	}
	return &mv, nil
}

// --------------------------------------------------------------------------
// Discovered pages
// --------------------------------------------------------------------------

func (p *PostgresClient) UpsertDiscoveredPage(ctx context.Context, page *domain.DiscoveredPage) error {
	page.DiscoveredAt = time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO discovered_pages (domain, page_url, alternate_href, discovered_mirror_url, discovery_method, discovered_at, ingestion_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (domain, page_url) DO UPDATE SET
			alternate_href = EXCLUDED.alternate_href,
			discovered_mirror_url = EXCLUDED.discovered_mirror_url,
			discovery_method = EXCLUDED.discovery_method,
			discovered_at = EXCLUDED.discovered_at,
			ingestion_id = EXCLUDED.ingestion_id
	`, page.Domain, page.PageURL, page.AlternateHref, page.DiscoveredMirrorURL, page.DiscoveryMethod, page.DiscoveredAt, page.IngestionID)
	if err != nil {
		return fmt.Errorf("postgres: upsert discovered page: %w", err)
	}
	return nil
}

func (p *PostgresClient) ListDiscoveredPages(ctx context.Context, domainName string) ([]domain.DiscoveredPage, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT domain, page_url, alternate_href, discovered_mirror_url, discovery_method, discovered_at, ingestion_id
		FROM discovered_pages WHERE domain = $1
		ORDER BY discovered_at DESC
	`, domainName)
	if err != nil {
		return nil, fmt.Errorf("postgres: list discovered pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.DiscoveredPage
	for rows.Next() {
		var pg domain.DiscoveredPage
		if err := rows.Scan(&pg.Domain, &pg.PageURL, &pg.AlternateHref, &pg.DiscoveredMirrorURL, &pg.DiscoveryMethod, &pg.DiscoveredAt, &pg.IngestionID); err != nil {
			return nil, fmt.Errorf("postgres: scan discovered page: %w", err)
		}
		pages = append(pages, pg)
	}
	return pages, rows.Err()
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// pgTx adapts a single pgx.Tx to both Tx (for ingest callers) and the full
// querier surface (so it can reuse PostgresClient's query bodies).
type pgTx struct {
	*PostgresClient
	tx pgx.Tx
}

// WithTx runs fn inside a single transaction, committing only if fn
// returns nil. The Ingestor uses this to stage snapshots, facts, and the
// markdown publication atomically behind the QA gate.
func (p *PostgresClient) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	pool, ok := p.pool.(*pgxpool.Pool)
	if !ok {
		return fmt.Errorf("postgres: WithTx called on a non-pool client")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	wrapped := &pgTx{PostgresClient: &PostgresClient{pool: tx}, tx: tx}
	if err := fn(wrapped); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

var _ PostgresStore = (*PostgresClient)(nil)
var _ Tx = (*pgTx)(nil)
