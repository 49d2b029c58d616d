package monitor

import (
	"sync"
	"time"
)

// maxRecentErrors bounds the error list carried in status snapshots.
const maxRecentErrors = 25

// ProcessedTransaction summarizes the most recently redistributed transfer.
type ProcessedTransaction struct {
	Signature   string    `json:"signature"`
	Destination string    `json:"destination"`
	Amount      uint64    `json:"amount"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ErrorEntry is one recorded pipeline error.
type ErrorEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Snapshot is a point-in-time copy of the monitor's operational state,
// safe to serialize and hand out.
type Snapshot struct {
	Running               bool                  `json:"running"`
	LastCheckedAt         *time.Time            `json:"last_checked_at,omitempty"`
	TransactionsProcessed uint64                `json:"transactions_processed"`
	LastTransaction       *ProcessedTransaction `json:"last_transaction,omitempty"`
	RecentErrors          []ErrorEntry          `json:"recent_errors"`
}

// status is the monitor-owned mutable state behind Snapshot. All access goes
// through its methods; nothing else holds a reference.
type status struct {
	mu sync.Mutex

	running               bool
	lastCheckedAt         time.Time
	transactionsProcessed uint64
	lastTransaction       *ProcessedTransaction
	recentErrors          []ErrorEntry
}

func newStatus() *status {
	return &status{}
}

func (s *status) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

func (s *status) markChecked(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheckedAt = at
}

func (s *status) recordProcessed(pt ProcessedTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactionsProcessed++
	s.lastTransaction = &pt
}

func (s *status) recordError(at time.Time, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentErrors = append(s.recentErrors, ErrorEntry{At: at, Message: message})
	if len(s.recentErrors) > maxRecentErrors {
		s.recentErrors = s.recentErrors[len(s.recentErrors)-maxRecentErrors:]
	}
}

func (s *status) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Running:               s.running,
		TransactionsProcessed: s.transactionsProcessed,
		RecentErrors:          make([]ErrorEntry, len(s.recentErrors)),
	}
	copy(snap.RecentErrors, s.recentErrors)

	if !s.lastCheckedAt.IsZero() {
		at := s.lastCheckedAt
		snap.LastCheckedAt = &at
	}
	if s.lastTransaction != nil {
		pt := *s.lastTransaction
		snap.LastTransaction = &pt
	}
	return snap
}
