package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"contentmod/api/internal/classifier"
	"contentmod/api/internal/models"
	"contentmod/api/internal/repository"
)

// memStore is an in-memory stand-in for the pgx repositories, covering
// both the pipeline and the analytics read side.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*models.ModerationRequest
	results  map[int64][]models.ModerationResult
	logs     []models.NotificationLog
	nextLog  int64

	failCreate   error
	failComplete error
	failLogs     error
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[int64]*models.ModerationRequest),
		results:  make(map[int64][]models.ModerationResult),
	}
}

func (m *memStore) CreateRequest(_ context.Context, req *models.ModerationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.nextID++
	req.ID = m.nextID
	req.CreatedAt = time.Now().UTC()
	clone := *req
	m.requests[req.ID] = &clone
	return nil
}

func (m *memStore) GetRequest(_ context.Context, id int64) (models.ModerationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return models.ModerationRequest{}, repository.ErrRequestNotFound
	}
	return *req, nil
}

func (m *memStore) GetRequestWithResults(ctx context.Context, id int64) (models.ModerationRequest, error) {
	req, err := m.GetRequest(ctx, id)
	if err != nil {
		return models.ModerationRequest{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	req.Results = append(req.Results, m.results[id]...)
	return req, nil
}

func (m *memStore) CompleteWithResult(_ context.Context, requestID int64, contentURL *string, result models.ModerationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failComplete != nil {
		return m.failComplete
	}
	req, ok := m.requests[requestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if req.Status != models.RequestStatusPending {
		return repository.ErrAlreadyCompleted
	}
	req.Status = models.RequestStatusCompleted
	if contentURL != nil {
		req.ContentURL = contentURL
	}
	m.results[requestID] = append(m.results[requestID], result)
	return nil
}

func (m *memStore) CountRequestsByEmail(_ context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, req := range m.requests {
		if req.Email == email {
			total++
		}
	}
	return total, nil
}

func (m *memStore) CountsByClassification(_ context.Context, email string, contentType models.ContentType) (map[models.Classification]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.Classification]int64)
	for id, req := range m.requests {
		if req.Email != email || req.ContentType != contentType {
			continue
		}
		for _, result := range m.results[id] {
			counts[result.Classification]++
		}
	}
	return counts, nil
}

func (m *memStore) LastRequest(_ context.Context, email string) (int64, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *models.ModerationRequest
	for _, req := range m.requests {
		if req.Email != email {
			continue
		}
		if last == nil || req.CreatedAt.After(last.CreatedAt) || (req.CreatedAt.Equal(last.CreatedAt) && req.ID > last.ID) {
			last = req
		}
	}
	if last == nil {
		return 0, time.Time{}, false, nil
	}
	return last.ID, last.CreatedAt, true, nil
}

func (m *memStore) Create(_ context.Context, entry *models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLog++
	entry.ID = m.nextLog
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memStore) ListByEmail(_ context.Context, email string) ([]models.NotificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLogs != nil {
		return nil, m.failLogs
	}
	var entries []models.NotificationLog
	for _, entry := range m.logs {
		if req, ok := m.requests[entry.RequestID]; ok && req.Email == email {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SentAt.After(entries[j].SentAt) })
	return entries, nil
}

func (m *memStore) request(id int64) models.ModerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.requests[id]
}

func (m *memStore) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *memStore) resultCount(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results[id])
}

func (m *memStore) notificationLogs() []models.NotificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.NotificationLog(nil), m.logs...)
}

// fakeClassifier returns a canned verdict, optionally blocking on gate
// until the test releases it.
type fakeClassifier struct {
	verdict classifier.Verdict
	err     error
	gate    chan struct{}

	mu        sync.Mutex
	textCalls int
	imageURLs []string
}

func (f *fakeClassifier) ClassifyText(ctx context.Context, _ string) (classifier.Verdict, error) {
	f.mu.Lock()
	f.textCalls++
	f.mu.Unlock()
	return f.answer(ctx)
}

func (f *fakeClassifier) ClassifyImage(ctx context.Context, imageURL string) (classifier.Verdict, error) {
	f.mu.Lock()
	f.imageURLs = append(f.imageURLs, imageURL)
	f.mu.Unlock()
	return f.answer(ctx)
}

func (f *fakeClassifier) answer(ctx context.Context) (classifier.Verdict, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return classifier.Verdict{}, ctx.Err()
		}
	}
	if f.err != nil {
		return classifier.Verdict{}, f.err
	}
	return f.verdict, nil
}

type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) Upload(context.Context, []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type sentMail struct {
	subject string
	html    string
	to      string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, subject, htmlBody, toAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{subject: subject, html: htmlBody, to: toAddress})
	return f.err
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMailer) lastSent() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}
