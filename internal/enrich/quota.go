package enrich

import "sync"

// QuotaBudget is a run-scoped budget of metadata API calls. It is safe for
// concurrent use and never goes below zero.
//
// The budget is not persisted: a new process starts with a full budget even
// if an earlier run on the same calendar day spent part of the external quota.
type QuotaBudget struct {
	mu        sync.Mutex
	limit     int
	remaining int
}

// NewQuotaBudget creates a budget of limit calls. Negative limits mean zero.
func NewQuotaBudget(limit int) *QuotaBudget {
	if limit < 0 {
		limit = 0
	}
	return &QuotaBudget{limit: limit, remaining: limit}
}

// TryAcquire takes one call from the budget. It returns false once the budget is spent.
func (q *QuotaBudget) TryAcquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.remaining <= 0 {
		return false
	}
	q.remaining--
	return true
}

// Remaining returns the calls left.
func (q *QuotaBudget) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining
}

// Used returns the calls taken so far.
func (q *QuotaBudget) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit - q.remaining
}
