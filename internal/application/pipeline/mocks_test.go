package pipeline_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/printpass/backend/internal/domain/document"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/queue"
)

// MockJobRepository is a mock implementation of render.Repository
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*render.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.Job), args.Error(1)
}

func (m *MockJobRepository) FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*render.Job, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.Job), args.Error(1)
}

func (m *MockJobRepository) FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]render.Job, error) {
	args := m.Called(ctx, ownerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]render.Job), args.Error(1)
}

func (m *MockJobRepository) CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, ownerID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) Save(ctx context.Context, job *render.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) AppendArtifact(ctx context.Context, artifact *render.PageArtifact) (int, error) {
	args := m.Called(ctx, artifact)
	return args.Int(0), args.Error(1)
}

func (m *MockJobRepository) TryBeginMerge(ctx context.Context, jobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobRepository) CompleteMerge(ctx context.Context, jobID, outputDocumentID uuid.UUID) error {
	args := m.Called(ctx, jobID, outputDocumentID)
	return args.Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error {
	args := m.Called(ctx, jobID, reason)
	return args.Error(0)
}

func (m *MockJobRepository) ReopenFailed(ctx context.Context, jobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobRepository) TouchHealAttempt(ctx context.Context, jobID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, jobID, at)
	return args.Error(0)
}

// MockDocumentRepository is a mock implementation of document.Repository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// MockEntryRepository is a mock implementation of ledger.EntryRepository
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) FindByOwnerAndDocument(ctx context.Context, ownerID, documentID uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]ledger.Entry, error) {
	args := m.Called(ctx, ownerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, ownerID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntryRepository) Save(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) Upsert(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) ConsumePrint(ctx context.Context, entryID uuid.UUID) (*ledger.ConsumeResult, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.ConsumeResult), args.Error(1)
}

// recordingQueue is an in-memory queue.Queue that captures enqueued tasks
// and deduplicates pending IDs the way the durable queue does.
type recordingQueue struct {
	mu      sync.Mutex
	tasks   []*queue.Task
	pending map[string]bool
	failAll bool
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{pending: make(map[string]bool)}
}

func (q *recordingQueue) Enqueue(ctx context.Context, task *queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAll {
		return context.DeadlineExceeded
	}
	if q.pending[task.ID] {
		return nil
	}
	q.pending[task.ID] = true
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	delete(q.pending, task.ID)
	return task, nil
}

func (q *recordingQueue) RetryLater(ctx context.Context, task *queue.Task, delay time.Duration) error {
	return q.Enqueue(ctx, task)
}

func (q *recordingQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (q *recordingQueue) Bury(ctx context.Context, task *queue.Task, reason string) error {
	return nil
}

func (q *recordingQueue) taskIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, len(q.tasks))
	for i, t := range q.tasks {
		ids[i] = t.ID
	}
	return ids
}

func (q *recordingQueue) taskTypes() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	types := make([]string, len(q.tasks))
	for i, t := range q.tasks {
		types[i] = t.Type
	}
	return types
}
