package identity

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

type simulatedRecord struct {
	nodeRef string
	wallet  string
	attrs   map[string]string
}

// SimulatedAdapter is an in-memory Adapter producing deterministic node
// references (a "node:<handle>" string), used by tests and by
// IDENTITY_BACKEND=simulated.
type SimulatedAdapter struct {
	mu      sync.Mutex
	records map[string]*simulatedRecord // keyed by handle
}

func NewSimulatedAdapter() *SimulatedAdapter {
	return &SimulatedAdapter{records: make(map[string]*simulatedRecord)}
}

func (s *SimulatedAdapter) Register(ctx context.Context, handle, wallet string, initialAttributes map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[handle]; ok {
		return existing.nodeRef, nil
	}

	attrs := make(map[string]string, len(initialAttributes))
	maps.Copy(attrs, initialAttributes)

	nodeRef := fmt.Sprintf("node:%s", handle)
	s.records[handle] = &simulatedRecord{nodeRef: nodeRef, wallet: wallet, attrs: attrs}
	return nodeRef, nil
}

func (s *SimulatedAdapter) UpdateAttributes(ctx context.Context, nodeRef string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.findByNodeRef(nodeRef)
	if record == nil {
		return ErrNotRegistered
	}
	maps.Copy(record.attrs, attrs)
	return nil
}

func (s *SimulatedAdapter) Lookup(ctx context.Context, handle string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[handle]
	if !ok {
		return nil, ErrNotFound
	}
	attrs := make(map[string]string, len(record.attrs))
	maps.Copy(attrs, record.attrs)
	return &Record{NodeRef: record.nodeRef, Wallet: record.wallet, Attributes: attrs}, nil
}

func (s *SimulatedAdapter) findByNodeRef(nodeRef string) *simulatedRecord {
	for _, record := range s.records {
		if record.nodeRef == nodeRef {
			return record
		}
	}
	return nil
}

var _ Adapter = (*SimulatedAdapter)(nil)
