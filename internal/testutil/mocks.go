package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockTxManager runs fn inline and counts units
type MockTxManager struct {
	mu    sync.Mutex
	Calls int
	Fn    func(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewMockTxManager creates a new MockTxManager
func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithinTransaction runs fn with ctx unchanged
func (m *MockTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.Calls++
	hook := m.Fn
	m.mu.Unlock()
	if hook != nil {
		return hook(ctx, fn)
	}
	return fn(ctx)
}

// MockOwnerRepository is a mock implementation of domain.OwnerRepository
type MockOwnerRepository struct {
	OwnerIDs []string
	ListFn   func(ctx context.Context) ([]string, error)
}

// NewMockOwnerRepository creates a new MockOwnerRepository
func NewMockOwnerRepository(ownerIDs ...string) *MockOwnerRepository {
	return &MockOwnerRepository{OwnerIDs: ownerIDs}
}

// ListOwnerIDs returns the configured owners
func (m *MockOwnerRepository) ListOwnerIDs(ctx context.Context) ([]string, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return append([]string(nil), m.OwnerIDs...), nil
}

// MockRecurringRuleRepository is a mock implementation of domain.RecurringRuleRepository
type MockRecurringRuleRepository struct {
	mu       sync.Mutex
	Rules    map[uuid.UUID]*domain.RecurringRule
	CreateFn func(rule *domain.RecurringRule) (*domain.RecurringRule, error)
	ListFn   func(ownerID string) ([]*domain.RecurringRule, error)
}

// NewMockRecurringRuleRepository creates a new MockRecurringRuleRepository
func NewMockRecurringRuleRepository() *MockRecurringRuleRepository {
	return &MockRecurringRuleRepository{
		Rules: make(map[uuid.UUID]*domain.RecurringRule),
	}
}

// Create stores a copy of rule with a fresh ID
func (m *MockRecurringRuleRepository) Create(ctx context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error) {
	if m.CreateFn != nil {
		return m.CreateFn(rule)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *rule
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.Rules[stored.ID] = &stored
	out := stored
	return &out, nil
}

// GetByID retrieves a live rule
func (m *MockRecurringRuleRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*domain.RecurringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.Rules[id]
	if !ok || rule.OwnerID != ownerID || rule.DeletedAt != nil {
		return nil, domain.ErrRuleNotFound
	}
	out := *rule
	return &out, nil
}

// ListByOwner returns live rules ordered by creation
func (m *MockRecurringRuleRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.RecurringRule, error) {
	if m.ListFn != nil {
		return m.ListFn(ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := make([]*domain.RecurringRule, 0)
	for _, rule := range m.Rules {
		if rule.OwnerID == ownerID && rule.DeletedAt == nil {
			out := *rule
			rules = append(rules, &out)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
	return rules, nil
}

// Update replaces a stored rule
func (m *MockRecurringRuleRepository) Update(ctx context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.Rules[rule.ID]
	if !ok || existing.OwnerID != rule.OwnerID || existing.DeletedAt != nil {
		return nil, domain.ErrRuleNotFound
	}
	stored := *rule
	stored.UpdatedAt = time.Now()
	m.Rules[stored.ID] = &stored
	out := stored
	return &out, nil
}

// Delete soft-deletes a rule
func (m *MockRecurringRuleRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.Rules[id]
	if !ok || rule.OwnerID != ownerID || rule.DeletedAt != nil {
		return domain.ErrRuleNotFound
	}
	now := time.Now()
	rule.DeletedAt = &now
	return nil
}

// AddRule adds a rule directly (test helper)
func (m *MockRecurringRuleRepository) AddRule(rule *domain.RecurringRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	stored := *rule
	m.Rules[stored.ID] = &stored
}

// MockTransactionRepository is a mock implementation of domain.TransactionRepository
type MockTransactionRepository struct {
	mu           sync.Mutex
	Transactions map[uuid.UUID]*domain.Transaction
	order        []uuid.UUID
	CreateFn     func(tx *domain.Transaction) (*domain.Transaction, error)
	UpdateFn     func(tx *domain.Transaction) (*domain.Transaction, error)
	ListFn       func(ownerID string, filters *domain.TransactionFilters) ([]*domain.Transaction, error)
}

// NewMockTransactionRepository creates a new MockTransactionRepository
func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		Transactions: make(map[uuid.UUID]*domain.Transaction),
	}
}

// Create stores a copy of tx, rejecting a link that is already taken
func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	if m.CreateFn != nil {
		return m.CreateFn(tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.Link != nil {
		for _, existing := range m.Transactions {
			if existing.OwnerID == tx.OwnerID && existing.Link != nil && existing.Link.Matches(*tx.Link) {
				return nil, domain.ErrDuplicateLink
			}
		}
	}
	stored := copyTransaction(tx)
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.Transactions[stored.ID] = stored
	m.order = append(m.order, stored.ID)
	return copyTransaction(stored), nil
}

// GetByID retrieves a live transaction
func (m *MockTransactionRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLive(ownerID, id)
}

// GetByIDForUpdate behaves like GetByID
func (m *MockTransactionRepository) GetByIDForUpdate(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Transaction, error) {
	return m.GetByID(ctx, ownerID, id)
}

func (m *MockTransactionRepository) getLive(ownerID string, id uuid.UUID) (*domain.Transaction, error) {
	tx, ok := m.Transactions[id]
	if !ok || tx.OwnerID != ownerID || tx.DeletedAt != nil {
		return nil, domain.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

// List returns live transactions ordered by date then insertion
func (m *MockTransactionRepository) List(ctx context.Context, ownerID string, filters *domain.TransactionFilters) ([]*domain.Transaction, error) {
	if m.ListFn != nil {
		return m.ListFn(ownerID, filters)
	}
	return m.collect(ownerID, func(tx *domain.Transaction) bool {
		if filters == nil {
			return true
		}
		if filters.StartDate != nil && tx.Date.Before(*filters.StartDate) {
			return false
		}
		if filters.EndDate != nil && !tx.Date.Before(*filters.EndDate) {
			return false
		}
		if filters.EnvelopeID != nil && (tx.EnvelopeID == nil || *tx.EnvelopeID != *filters.EnvelopeID) {
			return false
		}
		if filters.Direction != nil && tx.Direction != *filters.Direction {
			return false
		}
		if filters.Category != nil && tx.Category != *filters.Category {
			return false
		}
		return true
	}), nil
}

// Update replaces a live transaction
func (m *MockTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.getLive(tx.OwnerID, tx.ID); err != nil {
		return nil, err
	}
	stored := copyTransaction(tx)
	stored.UpdatedAt = time.Now()
	m.Transactions[stored.ID] = stored
	return copyTransaction(stored), nil
}

// SoftDelete marks a transaction deleted
func (m *MockTransactionRepository) SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.Transactions[id]
	if !ok || tx.OwnerID != ownerID || tx.DeletedAt != nil {
		return domain.ErrTransactionNotFound
	}
	now := time.Now()
	tx.DeletedAt = &now
	return nil
}

// Delete removes a transaction
func (m *MockTransactionRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.Transactions[id]
	if !ok || tx.OwnerID != ownerID {
		return domain.ErrTransactionNotFound
	}
	delete(m.Transactions, id)
	return nil
}

// FindByLinkSource returns live rows generated from sourceID
func (m *MockTransactionRepository) FindByLinkSource(ctx context.Context, ownerID string, kind domain.LinkKind, sourceID string) ([]*domain.Transaction, error) {
	return m.collect(ownerID, func(tx *domain.Transaction) bool {
		return tx.Link != nil && tx.Link.Kind == kind && tx.Link.SourceID == sourceID
	}), nil
}

// FindByLink returns the row holding link, including soft-deleted rows
func (m *MockTransactionRepository) FindByLink(ctx context.Context, ownerID string, link domain.TransactionLink) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		tx, ok := m.Transactions[id]
		if ok && tx.OwnerID == ownerID && tx.Link != nil && tx.Link.Matches(link) {
			return copyTransaction(tx), nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

// ListSettlements returns live settlement rows
func (m *MockTransactionRepository) ListSettlements(ctx context.Context, ownerID string) ([]*domain.Transaction, error) {
	return m.collect(ownerID, func(tx *domain.Transaction) bool { return tx.IsSettlement }), nil
}

// ListDeferredPrimaries returns live deferred expense primaries
func (m *MockTransactionRepository) ListDeferredPrimaries(ctx context.Context, ownerID string) ([]*domain.Transaction, error) {
	return m.collect(ownerID, func(tx *domain.Transaction) bool {
		return tx.IsDeferredPrimary() && tx.Direction == domain.DirectionExpense
	}), nil
}

// DetachEnvelopes clears the envelope link of every row filed under envelopeIDs
func (m *MockTransactionRepository) DetachEnvelopes(ctx context.Context, ownerID string, envelopeIDs []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	targets := make(map[uuid.UUID]bool, len(envelopeIDs))
	for _, id := range envelopeIDs {
		targets[id] = true
	}
	var n int64
	for _, tx := range m.Transactions {
		if tx.OwnerID == ownerID && tx.EnvelopeID != nil && targets[*tx.EnvelopeID] {
			tx.EnvelopeID = nil
			n++
		}
	}
	return n, nil
}

// SumExpensesByEnvelope sums live expenses filed under envelopeID
func (m *MockTransactionRepository) SumExpensesByEnvelope(ctx context.Context, ownerID string, envelopeID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, tx := range m.collect(ownerID, func(tx *domain.Transaction) bool {
		return tx.Direction == domain.DirectionExpense && tx.EnvelopeID != nil && *tx.EnvelopeID == envelopeID
	}) {
		total = total.Add(tx.Amount)
	}
	return total, nil
}

// SumCashOutflow sums cash-moving expenses dated in [start, end)
func (m *MockTransactionRepository) SumCashOutflow(ctx context.Context, ownerID string, start, end time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, tx := range m.collect(ownerID, func(tx *domain.Transaction) bool {
		return tx.CountsAsCashOutflow() && !tx.Date.Before(start) && tx.Date.Before(end)
	}) {
		total = total.Add(tx.Amount)
	}
	return total, nil
}

// AddTransaction adds a transaction directly (test helper)
func (m *MockTransactionRepository) AddTransaction(tx *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	m.Transactions[tx.ID] = copyTransaction(tx)
	m.order = append(m.order, tx.ID)
}

// Count returns the number of stored rows, live or not
func (m *MockTransactionRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Transactions)
}

// collect returns copies of live rows matching keep, ordered by date then insertion
func (m *MockTransactionRepository) collect(ownerID string, keep func(tx *domain.Transaction) bool) []*domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Transaction, 0)
	for _, id := range m.order {
		tx, ok := m.Transactions[id]
		if !ok || tx.OwnerID != ownerID || tx.DeletedAt != nil || !keep(tx) {
			continue
		}
		out = append(out, copyTransaction(tx))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func copyTransaction(tx *domain.Transaction) *domain.Transaction {
	out := *tx
	if tx.EnvelopeID != nil {
		id := *tx.EnvelopeID
		out.EnvelopeID = &id
	}
	if tx.Link != nil {
		link := *tx.Link
		out.Link = &link
	}
	if tx.DeletedAt != nil {
		at := *tx.DeletedAt
		out.DeletedAt = &at
	}
	return &out
}

// MockEnvelopeRepository is a mock implementation of domain.EnvelopeRepository
type MockEnvelopeRepository struct {
	mu        sync.Mutex
	Envelopes map[uuid.UUID]*domain.BudgetEnvelope
	order     []uuid.UUID
	UpdateFn  func(envelope *domain.BudgetEnvelope) (*domain.BudgetEnvelope, error)
}

// NewMockEnvelopeRepository creates a new MockEnvelopeRepository
func NewMockEnvelopeRepository() *MockEnvelopeRepository {
	return &MockEnvelopeRepository{
		Envelopes: make(map[uuid.UUID]*domain.BudgetEnvelope),
	}
}

// Create stores a copy of envelope with a fresh ID
func (m *MockEnvelopeRepository) Create(ctx context.Context, envelope *domain.BudgetEnvelope) (*domain.BudgetEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := copyEnvelope(envelope)
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.Envelopes[stored.ID] = stored
	m.order = append(m.order, stored.ID)
	return copyEnvelope(stored), nil
}

// GetByID retrieves an envelope
func (m *MockEnvelopeRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*domain.BudgetEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	envelope, ok := m.Envelopes[id]
	if !ok || envelope.OwnerID != ownerID {
		return nil, domain.ErrEnvelopeNotFound
	}
	return copyEnvelope(envelope), nil
}

// GetMaster returns the owner's master envelope
func (m *MockEnvelopeRepository) GetMaster(ctx context.Context, ownerID string) (*domain.BudgetEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		envelope, ok := m.Envelopes[id]
		if ok && envelope.OwnerID == ownerID && envelope.IsMaster {
			return copyEnvelope(envelope), nil
		}
	}
	return nil, domain.ErrNoMaster
}

// GetMasterForUpdate behaves like GetMaster
func (m *MockEnvelopeRepository) GetMasterForUpdate(ctx context.Context, ownerID string) (*domain.BudgetEnvelope, error) {
	return m.GetMaster(ctx, ownerID)
}

// ListByOwner returns the master first, then children in creation order
func (m *MockEnvelopeRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.BudgetEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var masters, children []*domain.BudgetEnvelope
	for _, id := range m.order {
		envelope, ok := m.Envelopes[id]
		if !ok || envelope.OwnerID != ownerID {
			continue
		}
		if envelope.IsMaster {
			masters = append(masters, copyEnvelope(envelope))
		} else {
			children = append(children, copyEnvelope(envelope))
		}
	}
	return append(append(make([]*domain.BudgetEnvelope, 0), masters...), children...), nil
}

// ListChildren returns the children of masterID
func (m *MockEnvelopeRepository) ListChildren(ctx context.Context, ownerID string, masterID uuid.UUID) ([]*domain.BudgetEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	children := make([]*domain.BudgetEnvelope, 0)
	for _, id := range m.order {
		envelope, ok := m.Envelopes[id]
		if ok && envelope.OwnerID == ownerID && envelope.ParentID != nil && *envelope.ParentID == masterID {
			children = append(children, copyEnvelope(envelope))
		}
	}
	return children, nil
}

// FindChildByCategory returns the child filed under category
func (m *MockEnvelopeRepository) FindChildByCategory(ctx context.Context, ownerID string, category domain.Category) (*domain.BudgetEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		envelope, ok := m.Envelopes[id]
		if ok && envelope.OwnerID == ownerID && !envelope.IsMaster && envelope.Category != nil && *envelope.Category == category {
			return copyEnvelope(envelope), nil
		}
	}
	return nil, domain.ErrEnvelopeNotFound
}

// Update replaces a stored envelope
func (m *MockEnvelopeRepository) Update(ctx context.Context, envelope *domain.BudgetEnvelope) (*domain.BudgetEnvelope, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(envelope)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.Envelopes[envelope.ID]
	if !ok || existing.OwnerID != envelope.OwnerID {
		return nil, domain.ErrEnvelopeNotFound
	}
	stored := copyEnvelope(envelope)
	stored.UpdatedAt = time.Now()
	m.Envelopes[stored.ID] = stored
	return copyEnvelope(stored), nil
}

// Delete removes an envelope
func (m *MockEnvelopeRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	envelope, ok := m.Envelopes[id]
	if !ok || envelope.OwnerID != ownerID {
		return domain.ErrEnvelopeNotFound
	}
	delete(m.Envelopes, id)
	return nil
}

// DeleteChildren removes every child of masterID
func (m *MockEnvelopeRepository) DeleteChildren(ctx context.Context, ownerID string, masterID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, envelope := range m.Envelopes {
		if envelope.OwnerID == ownerID && envelope.ParentID != nil && *envelope.ParentID == masterID {
			delete(m.Envelopes, id)
			n++
		}
	}
	return n, nil
}

// AddEnvelope adds an envelope directly (test helper)
func (m *MockEnvelopeRepository) AddEnvelope(envelope *domain.BudgetEnvelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if envelope.ID == uuid.Nil {
		envelope.ID = uuid.New()
	}
	m.Envelopes[envelope.ID] = copyEnvelope(envelope)
	m.order = append(m.order, envelope.ID)
}

func copyEnvelope(envelope *domain.BudgetEnvelope) *domain.BudgetEnvelope {
	out := *envelope
	if envelope.ParentID != nil {
		id := *envelope.ParentID
		out.ParentID = &id
	}
	if envelope.Category != nil {
		category := *envelope.Category
		out.Category = &category
	}
	return &out
}

// PublishedEvent records one call to MockEventPublisher.Publish
type PublishedEvent struct {
	OwnerID string
	Event   websocket.Event
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records the event
func (m *MockEventPublisher) Publish(ownerID string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{OwnerID: ownerID, Event: event})
}

// Types returns the event types published for ownerID, in order
func (m *MockEventPublisher) Types(ownerID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0)
	for _, e := range m.Events {
		if e.OwnerID == ownerID {
			types = append(types, e.Event.Type)
		}
	}
	return types
}
