package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/workflow"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type mockSink struct {
	mu       sync.Mutex
	messages []*entity.Message

	postFunc      func(visibility string, body string) error
	listSinceFunc func(ctx context.Context, tripID int64, since time.Time) ([]*entity.Message, error)
	now           func() time.Time
}

func (m *mockSink) post(tripID int64, authorID, body, visibility string, recipientIDs []string) (*entity.Message, error) {
	if m.postFunc != nil {
		if err := m.postFunc(visibility, body); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	createdAt := time.Now()
	if m.now != nil {
		createdAt = m.now()
	}
	msg := &entity.Message{
		ID:           fmt.Sprintf("msg-%d", len(m.messages)+1),
		TripID:       tripID,
		AuthorID:     authorID,
		Visibility:   visibility,
		Body:         body,
		RecipientIDs: append([]string(nil), recipientIDs...),
		CreatedAt:    createdAt,
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *mockSink) PostPublic(ctx context.Context, tripID int64, authorID, body string, recipientIDs []string) (*entity.Message, error) {
	return m.post(tripID, authorID, body, entity.VisibilityPublic, recipientIDs)
}

func (m *mockSink) PostRestricted(ctx context.Context, tripID int64, authorID, body string, recipientIDs []string) (*entity.Message, error) {
	return m.post(tripID, authorID, body, entity.VisibilityRestricted, recipientIDs)
}

func (m *mockSink) ListRestrictedSince(ctx context.Context, tripID int64, since time.Time) ([]*entity.Message, error) {
	if m.listSinceFunc != nil {
		return m.listSinceFunc(ctx, tripID, since)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Message
	for _, msg := range m.messages {
		if msg.TripID == tripID && msg.IsRestricted() && !msg.CreatedAt.Before(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockSink) ListByTrip(ctx context.Context, tripID int64) ([]*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Message
	for _, msg := range m.messages {
		if msg.TripID == tripID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockSink) Create(ctx context.Context, msg *entity.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockSink) count(visibility string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Visibility == visibility {
			n++
		}
	}
	return n
}

type mockTripRepo struct {
	mu    sync.Mutex
	trips map[int64]*entity.TripRequest

	listByStateFunc  func(ctx context.Context, states ...workflow.State) ([]*entity.TripRequest, error)
	atomicUpdateHook func(id int64) error
}

func newMockTripRepo(trips ...*entity.TripRequest) *mockTripRepo {
	r := &mockTripRepo{trips: make(map[int64]*entity.TripRequest)}
	for _, t := range trips {
		r.trips[t.ID] = t.Clone()
	}
	return r
}

func (r *mockTripRepo) Create(ctx context.Context, trip *entity.TripRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	trip.ID = int64(len(r.trips) + 1)
	r.trips[trip.ID] = trip.Clone()
	return nil
}

func (r *mockTripRepo) Get(ctx context.Context, id int64) (*entity.TripRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, port.ErrTripNotFound
	}
	return t.Clone(), nil
}

func (r *mockTripRepo) AtomicUpdate(ctx context.Context, id int64, mutate port.TripMutator) (*entity.TripRequest, error) {
	if r.atomicUpdateHook != nil {
		if err := r.atomicUpdateHook(id); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, port.ErrTripNotFound
	}
	c := t.Clone()
	if err := mutate(c); err != nil {
		return nil, err
	}
	c.Version++
	r.trips[id] = c.Clone()
	return c, nil
}

func (r *mockTripRepo) ListByState(ctx context.Context, states ...workflow.State) ([]*entity.TripRequest, error) {
	if r.listByStateFunc != nil {
		return r.listByStateFunc(ctx, states...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TripRequest
	for _, t := range r.trips {
		for _, s := range states {
			if t.State == s {
				out = append(out, t.Clone())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockTripRepo) stored(id int64) *entity.TripRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trips[id].Clone()
}

type mockHistoryRepo struct {
	records []*entity.TransitionHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.TransitionHistory) error {
	history.ID = int64(len(m.records) + 1)
	m.records = append(m.records, history)
	return nil
}

func (m *mockHistoryRepo) ListByTrip(ctx context.Context, tripID int64) ([]*entity.TransitionHistory, error) {
	var out []*entity.TransitionHistory
	for _, h := range m.records {
		if h.TripID == tripID {
			out = append(out, h)
		}
	}
	return out, nil
}

type mockDirectory struct {
	users map[string]*entity.User
}

func newMockDirectory(users ...*entity.User) *mockDirectory {
	d := &mockDirectory{users: make(map[string]*entity.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *mockDirectory) GetUser(ctx context.Context, id string) (*entity.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, port.ErrUserNotFound
	}
	return u, nil
}

func (d *mockDirectory) DefaultTravelApprover(ctx context.Context) (*entity.User, error) {
	for _, u := range d.users {
		if u.InGroup(entity.GroupTravelApprover) {
			return u, nil
		}
	}
	return nil, port.ErrUserNotFound
}

type mockAttachments struct {
	links []*entity.AttachmentLink
	err   error
}

func (m *mockAttachments) Link(ctx context.Context, attachmentIDs []string, tripID int64) error {
	for _, id := range attachmentIDs {
		m.links = append(m.links, &entity.AttachmentLink{TripID: tripID, AttachmentID: id})
	}
	return nil
}

func (m *mockAttachments) ListByTrip(ctx context.Context, tripID int64) ([]*entity.AttachmentLink, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.AttachmentLink
	for _, l := range m.links {
		if l.TripID == tripID {
			out = append(out, l)
		}
	}
	return out, nil
}
