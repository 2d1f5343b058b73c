package issuers

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryAssignment struct {
	email      string
	assignedAt time.Time
	seq        uint64
}

type memoryIssuer struct {
	issuer Issuer
	seq    uint64
}

// memoryBackend keeps issuers and assignments in process. Every mutation holds mu.
type memoryBackend struct {
	mu          sync.RWMutex
	now         clock
	seq         uint64
	issuers     map[string]*memoryIssuer
	assignments map[int64]memoryAssignment
}

// NewMemoryBackend builds the in-process fallback backend.
func NewMemoryBackend() Backend {
	return newMemoryBackend(utcNow)
}

func newMemoryBackend(now clock) *memoryBackend {
	return &memoryBackend{
		now:         now,
		issuers:     make(map[string]*memoryIssuer),
		assignments: make(map[int64]memoryAssignment),
	}
}

func (m *memoryBackend) Kind() string { return KindMemory }

func (m *memoryBackend) UpsertIssuer(ctx context.Context, in IssuerInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(in)
	return nil
}

func (m *memoryBackend) upsertLocked(in IssuerInput) {
	now := m.now()
	m.seq++
	existing, ok := m.issuers[in.Email]
	if !ok {
		m.issuers[in.Email] = &memoryIssuer{
			issuer: Issuer{
				Email:     in.Email,
				Name:      in.Name,
				Phone:     in.Phone,
				CreatedAt: now,
				UpdatedAt: now,
			},
			seq: m.seq,
		}
		return
	}
	if existing.issuer.Name == "" {
		existing.issuer.Name = in.Name
	}
	if in.Phone != nil {
		existing.issuer.Phone = in.Phone
	}
	existing.issuer.UpdatedAt = now
}

func (m *memoryBackend) AssignCoupon(ctx context.Context, in IssuerInput, couponID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upsertLocked(in)
	previous := ""
	if current, ok := m.assignments[couponID]; ok {
		previous = current.email
	}
	m.seq++
	m.assignments[couponID] = memoryAssignment{email: in.Email, assignedAt: m.now(), seq: m.seq}
	return previous, nil
}

func (m *memoryBackend) UnassignCoupon(ctx context.Context, email string, couponID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.assignments[couponID]
	if !ok || current.email != email {
		return false, nil
	}
	delete(m.assignments, couponID)
	return true, nil
}

func (m *memoryBackend) AssignedCouponIDs(ctx context.Context, email string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		id  int64
		at  time.Time
		seq uint64
	}
	entries := make([]entry, 0)
	for id, a := range m.assignments {
		if a.email == email {
			entries = append(entries, entry{id: id, at: a.assignedAt, seq: a.seq})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.After(entries[j].at)
		}
		return entries[i].seq > entries[j].seq
	})

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

func (m *memoryBackend) AllAssignedCouponIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.assignments))
	for id := range m.assignments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryBackend) CouponIssuerMap(ctx context.Context, ids []int64) (map[int64]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if a, ok := m.assignments[id]; ok {
			out[id] = a.email
		}
	}
	return out, nil
}

func (m *memoryBackend) ListIssuers(ctx context.Context, placeholder int64) ([]IssuerSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64, len(m.issuers))
	for id, a := range m.assignments {
		if id == placeholder {
			continue
		}
		counts[a.email]++
	}

	type entry struct {
		summary IssuerSummary
		seq     uint64
	}
	entries := make([]entry, 0, len(m.issuers))
	for email, mi := range m.issuers {
		entries = append(entries, entry{
			summary: IssuerSummary{Issuer: mi.issuer, CouponCount: counts[email]},
			seq:     mi.seq,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].summary.CreatedAt, entries[j].summary.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return entries[i].seq > entries[j].seq
	})

	out := make([]IssuerSummary, len(entries))
	for i, e := range entries {
		out[i] = e.summary
	}
	return out, nil
}

func (m *memoryBackend) GetIssuer(ctx context.Context, email string) (*Issuer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mi, ok := m.issuers[email]
	if !ok {
		return nil, errIssuerMissing
	}
	copied := mi.issuer
	return &copied, nil
}

func (m *memoryBackend) UpdateIssuer(ctx context.Context, email, name string, phone *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mi, ok := m.issuers[email]
	if !ok {
		return false, nil
	}
	mi.issuer.Name = name
	mi.issuer.Phone = phone
	mi.issuer.UpdatedAt = m.now()
	return true, nil
}

func (m *memoryBackend) MoveAssignments(ctx context.Context, from, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issuers[to]; !ok {
		return 0, errIssuerMissing
	}
	var moved int64
	for id, a := range m.assignments {
		if a.email != from {
			continue
		}
		a.email = to
		m.assignments[id] = a
		moved++
	}
	return moved, nil
}

func (m *memoryBackend) DeleteIssuer(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issuers[email]; !ok {
		return false, nil
	}
	for id, a := range m.assignments {
		if a.email == email {
			delete(m.assignments, id)
		}
	}
	delete(m.issuers, email)
	return true, nil
}

func (m *memoryBackend) Counts(ctx context.Context) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.issuers)), int64(len(m.assignments)), nil
}

func (m *memoryBackend) Ping(ctx context.Context) error { return nil }

func (m *memoryBackend) Close() error { return nil }
