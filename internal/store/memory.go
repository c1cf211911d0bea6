package store

import (
	"sort"
	"sync"

	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/pkg/errors"
)

// NewMemoryStore creates a Store backed by in-memory maps. All
// repositories share one RWMutex so writes from concurrent engine
// calls never interleave mid-aggregate.
func NewMemoryStore() *Store {
	mu := &sync.RWMutex{}
	return &Store{
		Payments:         &memoryPayments{mu: mu, items: make(map[string]*models.Payment)},
		Receivables:      &memoryReceivables{mu: mu, items: make(map[string]*models.ReceivableItem)},
		Remittances:      &memoryRemittances{mu: mu, items: make(map[string]*models.Remittance)},
		SettlementEvents: &memorySettlementEvents{mu: mu, items: make(map[string]*models.SettlementEvent)},
		SyncRuns:         &memorySyncRuns{mu: mu, runs: make(map[models.EntityType][]*models.SyncRun)},
	}
}

type memoryPayments struct {
	mu    *sync.RWMutex
	items map[string]*models.Payment
}

func (r *memoryPayments) Get(id string) (*models.Payment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	return p, ok
}

func (r *memoryPayments) Save(payment *models.Payment) error {
	if payment == nil {
		return errors.ValidationError(errors.CodeMissingField, "payment", nil, nil)
	}
	if payment.ID == "" {
		return errors.ValidationError(errors.CodeMissingField, "payment.id", nil, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[payment.ID] = payment
	return nil
}

func (r *memoryPayments) List() []*models.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Payment, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryPayments) ListByStatus(status models.PaymentStatus) []*models.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Payment
	for _, p := range r.items {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memoryReceivables struct {
	mu    *sync.RWMutex
	items map[string]*models.ReceivableItem
}

func (r *memoryReceivables) Upsert(item *models.ReceivableItem) error {
	if item == nil {
		return errors.ValidationError(errors.CodeMissingField, "receivable_item", nil, nil)
	}
	if err := item.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.Identifier] = item
	return nil
}

func (r *memoryReceivables) List() []*models.ReceivableItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ReceivableItem, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

type memoryRemittances struct {
	mu    *sync.RWMutex
	items map[string]*models.Remittance
}

func (r *memoryRemittances) Get(id string) (*models.Remittance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rem, ok := r.items[id]
	return rem, ok
}

func (r *memoryRemittances) ForPayment(paymentID string) (*models.Remittance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *models.Remittance
	for _, rem := range r.items {
		if rem.PaymentID != paymentID {
			continue
		}
		if best == nil || rem.ID < best.ID {
			best = rem
		}
	}
	return best, best != nil
}

func (r *memoryRemittances) Save(remittance *models.Remittance) error {
	if remittance == nil {
		return errors.ValidationError(errors.CodeMissingField, "remittance", nil, nil)
	}
	if remittance.ID == "" {
		return errors.ValidationError(errors.CodeMissingField, "remittance.id", nil, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[remittance.ID] = remittance
	return nil
}

type memorySettlementEvents struct {
	mu    *sync.RWMutex
	items map[string]*models.SettlementEvent
}

func (r *memorySettlementEvents) ByBankReference(bankReference string) []*models.SettlementEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.SettlementEvent
	for _, e := range r.items {
		if e.BankReference == bankReference {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memorySettlementEvents) Open() []*models.SettlementEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.SettlementEvent
	for _, e := range r.items {
		if !e.IsClosed() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memorySettlementEvents) List() []*models.SettlementEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.SettlementEvent, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memorySettlementEvents) Save(event *models.SettlementEvent) error {
	if event == nil {
		return errors.ValidationError(errors.CodeMissingField, "settlement_event", nil, nil)
	}
	if event.ID == "" {
		return errors.ValidationError(errors.CodeMissingField, "settlement_event.id", nil, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[event.ID] = event
	return nil
}

type memorySyncRuns struct {
	mu   *sync.RWMutex
	runs map[models.EntityType][]*models.SyncRun
}

func (r *memorySyncRuns) Record(run *models.SyncRun) error {
	if run == nil {
		return errors.ValidationError(errors.CodeMissingField, "sync_run", nil, nil)
	}
	if err := run.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.Entity] = append(r.runs[run.Entity], run)
	return nil
}

func (r *memorySyncRuns) Latest(entity models.EntityType) (*models.SyncRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := r.runs[entity]
	if len(history) == 0 {
		return nil, false
	}
	latest := history[0]
	for _, run := range history[1:] {
		if run.CompletedAt.After(latest.CompletedAt) {
			latest = run
		}
	}
	return latest, true
}
