package mimic

import (
	"sync"
	"time"
)

const DefaultLedgerCapacity = 1000

type RequestRecord struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Query     map[string]string `json:"query_params,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      *string           `json:"body,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Ledger keeps the most recent requests, oldest first. Once full, every
// append evicts the oldest record.
type Ledger struct {
	mu       sync.RWMutex
	records  []RequestRecord
	capacity int
}

func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &Ledger{
		records:  make([]RequestRecord, 0, capacity),
		capacity: capacity,
	}
}

func (l *Ledger) Append(record RequestRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
	if over := len(l.records) - l.capacity; over > 0 {
		l.records = l.records[over:]
	}
}

func (l *Ledger) All() []RequestRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]RequestRecord{}, l.records...)
}

// CountMatching filters on method and path only; query, headers and body are
// not considered.
func (l *Ledger) CountMatching(method, path string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, record := range l.records {
		if record.Method == method && record.Path == path {
			count++
		}
	}
	return count
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) Capacity() int {
	return l.capacity
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make([]RequestRecord, 0, l.capacity)
}
