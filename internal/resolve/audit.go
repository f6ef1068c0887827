package resolve

import (
	"sync"

	"github.com/mistakeknot/arbiter/internal/core"
)

// DefaultAuditCap bounds the in-memory audit trail.
const DefaultAuditCap = 500

// AuditLog is a bounded, append-only ring of resolution audit records.
// Durable audit storage belongs to an external collaborator; this ring only
// backs the inspection endpoint.
type AuditLog struct {
	mu      sync.Mutex
	records []core.AuditRecord
	cap     int
}

func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCap
	}
	return &AuditLog{cap: capacity}
}

// Append adds a record, evicting the oldest once the cap is reached.
func (l *AuditLog) Append(rec core.AuditRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	if len(l.records) > l.cap {
		l.records = l.records[len(l.records)-l.cap:]
	}
}

// Recent returns up to limit of the most recent records, oldest first.
// limit <= 0 returns everything retained.
func (l *AuditLog) Recent(limit int) []core.AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.AuditRecord, n)
	copy(out, l.records[len(l.records)-n:])
	return out
}

// Len reports how many records are retained.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Reset drops every record. Test support.
func (l *AuditLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
