package matcher

import (
	"ar-reconciliation-service/internal/models"
	"ar-reconciliation-service/internal/tokenizer"
)

// ReceivableIndex provides indexed lookups over the receivable catalog
// for candidate selection and remittance reference resolution. The
// catalog is read-mostly; rebuild the index after sync upserts rather
// than mutating it in place.
type ReceivableIndex struct {
	// ByIdentifier maps sanitized identifiers to receivables
	ByIdentifier map[string]*models.ReceivableItem

	// ByCustomer maps customer IDs to their receivables
	ByCustomer map[string][]*models.ReceivableItem

	// AllItems holds every indexed receivable
	AllItems []*models.ReceivableItem
}

// IndexStats summarizes index contents
type IndexStats struct {
	TotalItems  int `json:"total_items"`
	OpenItems   int `json:"open_items"`
	Invoices    int `json:"invoices"`
	CreditMemos int `json:"credit_memos"`
	Customers   int `json:"customers"`
}

// NewReceivableIndex builds an index over the given receivables
func NewReceivableIndex(items []*models.ReceivableItem) *ReceivableIndex {
	index := &ReceivableIndex{
		ByIdentifier: make(map[string]*models.ReceivableItem),
		ByCustomer:   make(map[string][]*models.ReceivableItem),
		AllItems:     items,
	}

	for _, item := range items {
		index.ByIdentifier[tokenizer.Sanitize(item.Identifier)] = item
		if item.CustomerID != "" {
			index.ByCustomer[item.CustomerID] = append(index.ByCustomer[item.CustomerID], item)
		}
	}

	return index
}

// Lookup finds a receivable by identifier, comparing sanitized forms so
// that "inv-51201" and "INV51201" resolve to the same item.
func (ri *ReceivableIndex) Lookup(identifier string) (*models.ReceivableItem, bool) {
	item, ok := ri.ByIdentifier[tokenizer.Sanitize(identifier)]
	return item, ok
}

// Candidates returns the open receivables to score for a payment. A
// resolved customer narrows the scan to that customer's items; an
// unresolved payment scans the whole open catalog.
func (ri *ReceivableIndex) Candidates(customerID string) []*models.ReceivableItem {
	source := ri.AllItems
	if customerID != "" {
		source = ri.ByCustomer[customerID]
	}

	var open []*models.ReceivableItem
	for _, item := range source {
		if item.IsOpen() {
			open = append(open, item)
		}
	}
	return open
}

// OpenItems returns every open receivable
func (ri *ReceivableIndex) OpenItems() []*models.ReceivableItem {
	return ri.Candidates("")
}

// GetIndexStats returns statistics about the indexed catalog
func (ri *ReceivableIndex) GetIndexStats() IndexStats {
	stats := IndexStats{
		TotalItems: len(ri.AllItems),
		Customers:  len(ri.ByCustomer),
	}

	for _, item := range ri.AllItems {
		if item.IsOpen() {
			stats.OpenItems++
		}
		switch item.Type {
		case models.ReceivableInvoice:
			stats.Invoices++
		case models.ReceivableCreditMemo:
			stats.CreditMemos++
		}
	}

	return stats
}
