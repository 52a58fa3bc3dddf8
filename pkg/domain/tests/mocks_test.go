package tests

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
)

var errStorage = errors.New("storage unavailable")

type mockRecipientRepository struct {
	mu         sync.Mutex
	store      map[uuid.UUID]*model.Recipient
	order      []uuid.UUID
	updateErr  error
	countCalls int
}

func newMockRecipientRepository(recipients ...model.Recipient) *mockRecipientRepository {
	m := &mockRecipientRepository{store: make(map[uuid.UUID]*model.Recipient)}
	for _, r := range recipients {
		m.add(r)
	}
	return m
}

func (m *mockRecipientRepository) add(r model.Recipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[r.ID]; !exists {
		m.order = append(m.order, r.ID)
	}
	copied := r
	m.store[r.ID] = &copied
}

func (m *mockRecipientRepository) get(id uuid.UUID) model.Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.store[id]
}

func (m *mockRecipientRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return nil, model.ErrRecipientNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *mockRecipientRepository) FindByEventID(_ context.Context, eventID uuid.UUID) ([]model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Recipient
	for _, id := range m.order {
		if r := m.store[id]; r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRecipientRepository) UpdateCounters(_ context.Context, id uuid.UUID, update model.RecipientCounterUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	r, ok := m.store[id]
	if !ok {
		return model.ErrRecipientNotFound
	}
	switch update.Channel {
	case model.SMS:
		r.SMSCount = update.NewCount
	case model.Chat:
		r.ChatCount = update.NewCount
	case model.Voice:
		r.VoiceCount = update.NewCount
	}
	at := update.LastContactedAt
	r.LastContactedAt = &at
	return nil
}

func (m *mockRecipientRepository) UpdateRSVP(_ context.Context, id uuid.UUID, update model.RecipientRSVPUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	r, ok := m.store[id]
	if !ok {
		return model.ErrRecipientNotFound
	}
	r.Status = update.Status
	r.ConfirmedAt = update.ConfirmedAt
	if update.PartySize > 0 {
		r.PartySize = update.PartySize
	}
	return nil
}

func (m *mockRecipientRepository) CountByStatus(_ context.Context, eventID uuid.UUID, status model.RSVPStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	n := 0
	for _, r := range m.store {
		if r.EventID == eventID && r.Status == status {
			n++
		}
	}
	return n, nil
}

type mockEventRepository struct {
	store map[uuid.UUID]*model.Event
}

func newMockEventRepository(events ...model.Event) *mockEventRepository {
	m := &mockEventRepository{store: make(map[uuid.UUID]*model.Event)}
	for _, e := range events {
		copied := e
		m.store[e.ID] = &copied
	}
	return m
}

func (m *mockEventRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Event, error) {
	e, ok := m.store[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

type mockNotificationRepository struct {
	mu      sync.Mutex
	store   map[uuid.UUID]*model.Notification
	saveErr error
}

func newMockNotificationRepository() *mockNotificationRepository {
	return &mockNotificationRepository{store: make(map[uuid.UUID]*model.Notification)}
}

func (m *mockNotificationRepository) NextID() (uuid.UUID, error) { return uuid.New(), nil }

func (m *mockNotificationRepository) Save(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *n
	m.store[n.ID] = &copied
	return nil
}

func (m *mockNotificationRepository) CountByRecipientAndChannel(_ context.Context, recipientID uuid.UUID, channel model.Channel) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, notif := range m.store {
		if notif.RecipientID == recipientID && notif.Channel == channel {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepository) FindByRecipientID(_ context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	return m.filter(func(n *model.Notification) bool { return n.RecipientID == recipientID }), nil
}

func (m *mockNotificationRepository) FindByEventID(_ context.Context, eventID uuid.UUID) ([]model.Notification, error) {
	return m.filter(func(n *model.Notification) bool { return n.EventID == eventID }), nil
}

func (m *mockNotificationRepository) FindByBatchID(_ context.Context, batchID uuid.UUID) ([]model.Notification, error) {
	return m.filter(func(n *model.Notification) bool { return n.BatchID.Valid && n.BatchID.UUID == batchID }), nil
}

func (m *mockNotificationRepository) filter(keep func(n *model.Notification) bool) []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for _, n := range m.store {
		if keep(n) {
			out = append(out, *n)
		}
	}
	return out
}

func (m *mockNotificationRepository) byStatus(status model.NotificationStatus) []model.Notification {
	return m.filter(func(n *model.Notification) bool { return n.Status == status })
}

type mockBatchRepository struct {
	mu        sync.Mutex
	store     map[uuid.UUID]*model.NotificationBatch
	history   []model.BatchStatus
	createErr error
	// failUpdateOn makes Update fail when the incoming batch has this status.
	failUpdateOn model.BatchStatus
	updateErr    error
}

func newMockBatchRepository() *mockBatchRepository {
	return &mockBatchRepository{store: make(map[uuid.UUID]*model.NotificationBatch)}
}

func (m *mockBatchRepository) NextID() (uuid.UUID, error) { return uuid.New(), nil }

func (m *mockBatchRepository) Create(_ context.Context, b *model.NotificationBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copied := *b
	m.store[b.ID] = &copied
	m.history = append(m.history, b.Status)
	return nil
}

func (m *mockBatchRepository) Update(_ context.Context, b *model.NotificationBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil && b.Status == m.failUpdateOn {
		return m.updateErr
	}
	copied := *b
	m.store[b.ID] = &copied
	m.history = append(m.history, b.Status)
	return nil
}

func (m *mockBatchRepository) FindByID(_ context.Context, id uuid.UUID) (*model.NotificationBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[id]
	if !ok {
		return nil, model.ErrBatchNotFound
	}
	copied := *b
	return &copied, nil
}

type sentMessage struct {
	Channel model.Channel
	Address string
	Body    string
}

type mockProviderGateway struct {
	mu       sync.Mutex
	sent     []sentMessage
	failFor  map[string]string
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func newMockProviderGateway() *mockProviderGateway {
	return &mockProviderGateway{failFor: make(map[string]string)}
}

func (m *mockProviderGateway) SendSMS(_ context.Context, address, body string) model.SendResult {
	return m.send(model.SMS, address, body)
}

func (m *mockProviderGateway) SendChatMessage(_ context.Context, address, body string) model.SendResult {
	return m.send(model.Chat, address, body)
}

func (m *mockProviderGateway) MakeVoiceCall(_ context.Context, address, script string) model.SendResult {
	return m.send(model.Voice, address, script)
}

func (m *mockProviderGateway) send(channel model.Channel, address, body string) model.SendResult {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	m.sent = append(m.sent, sentMessage{Channel: channel, Address: address, Body: body})
	if reason, ok := m.failFor[address]; ok {
		return model.SendResult{Success: false, Error: reason}
	}
	return model.SendResult{Success: true, ProviderMessageID: "msg-" + strings.TrimPrefix(address, "+")}
}

func (m *mockProviderGateway) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockCache struct {
	mu        sync.Mutex
	store     map[string][]byte
	deleted   []string
	patterns  []string
	getErr    error
	deleteErr error
	gets      int
}

func newMockCache() *mockCache {
	return &mockCache{store: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.store[key]
	if !ok {
		return nil, model.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.store, key)
	return nil
}

func (m *mockCache) DeleteByPattern(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, prefix)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for k := range m.store {
		if strings.HasPrefix(k, prefix) {
			delete(m.store, k)
		}
	}
	return nil
}

type mockEventDispatcher struct {
	mu     sync.Mutex
	events []service.Event
}

func (m *mockEventDispatcher) Dispatch(event service.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventDispatcher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Type())
	}
	return out
}

func (m *mockEventDispatcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

func newRecipient(eventID uuid.UUID, firstName, phone string) model.Recipient {
	now := time.Now().UTC()
	return model.Recipient{
		ID:        uuid.New(),
		EventID:   eventID,
		FirstName: firstName,
		LastName:  "Levi",
		Phone:     phone,
		Status:    model.RSVPPending,
		PartySize: 1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func strPtr(s string) *string { return &s }
