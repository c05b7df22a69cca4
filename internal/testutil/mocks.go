package testutil

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/storage"
	"github.com/malwarescan/oracle/internal/streaming"
)

type MockPostgresStore struct {
	mock.Mock
}

func (m *MockPostgresStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPostgresStore) InsertJob(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockPostgresStore) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockPostgresStore) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, errMsg *string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockPostgresStore) ListJobs(ctx context.Context, statusFilter string, limit int) ([]domain.Job, error) {
	args := m.Called(ctx, statusFilter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *MockPostgresStore) InsertEvent(ctx context.Context, jobID uuid.UUID, eventType string, data []byte) (*domain.Event, error) {
	args := m.Called(ctx, jobID, eventType, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func (m *MockPostgresStore) GetEventsSince(ctx context.Context, jobID uuid.UUID, lastID int64, max int) ([]domain.Event, error) {
	args := m.Called(ctx, jobID, lastID, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockPostgresStore) UpsertVerifiedDomain(ctx context.Context, d *domain.VerifiedDomain) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockPostgresStore) GetVerifiedDomain(ctx context.Context, domainName string) (*domain.VerifiedDomain, error) {
	args := m.Called(ctx, domainName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerifiedDomain), args.Error(1)
}

func (m *MockPostgresStore) MarkDomainVerified(ctx context.Context, domainName string) error {
	args := m.Called(ctx, domainName)
	return args.Error(0)
}

func (m *MockPostgresStore) UpsertHtmlSnapshot(ctx context.Context, s *domain.HtmlSnapshot) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockPostgresStore) GetLatestSnapshot(ctx context.Context, domainName, sourceURL string) (*domain.HtmlSnapshot, error) {
	args := m.Called(ctx, domainName, sourceURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HtmlSnapshot), args.Error(1)
}

func (m *MockPostgresStore) UpsertFact(ctx context.Context, f *domain.Fact) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockPostgresStore) GetFactsByDomain(ctx context.Context, domainName string, evidenceType, sourceURL string) ([]domain.Fact, error) {
	args := m.Called(ctx, domainName, evidenceType, sourceURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fact), args.Error(1)
}

func (m *MockPostgresStore) GetFactsBySourceURL(ctx context.Context, domainName, sourceURL string, evidenceType string) ([]domain.Fact, error) {
	args := m.Called(ctx, domainName, sourceURL, evidenceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fact), args.Error(1)
}

func (m *MockPostgresStore) CountFacts(ctx context.Context, domainName string) (map[string]int, error) {
	args := m.Called(ctx, domainName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockPostgresStore) PublishMarkdownVersion(ctx context.Context, mv *domain.MarkdownVersion) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *MockPostgresStore) GetActiveMarkdown(ctx context.Context, domainName, path string) (*domain.MarkdownVersion, error) {
	args := m.Called(ctx, domainName, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MarkdownVersion), args.Error(1)
}

func (m *MockPostgresStore) UpsertDiscoveredPage(ctx context.Context, p *domain.DiscoveredPage) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPostgresStore) ListDiscoveredPages(ctx context.Context, domainName string) ([]domain.DiscoveredPage, error) {
	args := m.Called(ctx, domainName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DiscoveredPage), args.Error(1)
}

func (m *MockPostgresStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// MockTx is a storage.Tx usable from inside a WithTx callback in tests;
// callers typically run m.On("WithTx", ...).Run(func(a mock.Arguments) {
// fn := a.Get(1).(func(storage.Tx) error); fn(new(MockTx)) }) to exercise
// the real staging logic against a scripted transaction.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) UpsertHtmlSnapshot(ctx context.Context, s *domain.HtmlSnapshot) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockTx) UpsertFact(ctx context.Context, f *domain.Fact) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockTx) PublishMarkdownVersion(ctx context.Context, mv *domain.MarkdownVersion) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *MockTx) UpsertDiscoveredPage(ctx context.Context, p *domain.DiscoveredPage) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockMetricsSink struct {
	mock.Mock
}

func (m *MockMetricsSink) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockMetricsSink) IncrCounter(ctx context.Context, name string, delta int64) error {
	args := m.Called(ctx, name, delta)
	return args.Error(0)
}

func (m *MockMetricsSink) ReadCounters(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockMetricsSink) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockKBCache struct {
	mock.Mock
}

func (m *MockKBCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockKBCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockKBCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockKBCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKBCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSnapshotArchive struct {
	mock.Mock
}

func (m *MockSnapshotArchive) Upload(ctx context.Context, key string, reader io.Reader, size int64) error {
	args := m.Called(ctx, key, reader, size)
	return args.Error(0)
}

func (m *MockSnapshotArchive) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

type MockStreamBus struct {
	mock.Mock
}

func (m *MockStreamBus) EnsureStreams(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStreamBus) Enqueue(ctx context.Context, msg streaming.JobMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockStreamBus) ReadGroup(ctx context.Context, consumer string, count int, blockMs int) ([]streaming.Delivery, error) {
	args := m.Called(ctx, consumer, count, blockMs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]streaming.Delivery), args.Error(1)
}

func (m *MockStreamBus) Ack(ctx context.Context, d streaming.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockStreamBus) Nak(ctx context.Context, d streaming.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockStreamBus) WriteDLQ(ctx context.Context, rec streaming.DLQRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStreamBus) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStreamBus) Close() {
	m.Called()
}

var (
	_ storage.PostgresStore  = (*MockPostgresStore)(nil)
	_ storage.Tx             = (*MockTx)(nil)
	_ storage.MetricsSink    = (*MockMetricsSink)(nil)
	_ storage.KBCache        = (*MockKBCache)(nil)
	_ storage.SnapshotArchive = (*MockSnapshotArchive)(nil)
	_ streaming.StreamBus    = (*MockStreamBus)(nil)
)
