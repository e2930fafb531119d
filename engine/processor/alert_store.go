package processor

import (
	"encoding/json"
	"os"
	"sync"

	"netwatch/engine/models"
)

// AlertStore is the JSON-file-backed alert-level map of spec.md §4.5/§6:
// "node_metric_id -> WARNING|CRITICAL", reloaded from disk before every
// decision so a second process writing the same file is safe, grounded on
// original_source/backend/metrics_processor.py's load-before-write pattern
// (carried over faithfully since the corpus has no direct analogue for
// this reload-under-lock idiom).
type AlertStore struct {
	mu   sync.Mutex
	path string
}

// NewAlertStore constructs a store backed by the given file path.
func NewAlertStore(path string) *AlertStore {
	return &AlertStore{path: path}
}

// load re-reads the alert-state file; a missing file is an empty map, not
// an error.
func (s *AlertStore) load() (map[string]models.AlertLevel, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]models.AlertLevel{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return map[string]models.AlertLevel{}, nil
	}
	var m map[string]models.AlertLevel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]models.AlertLevel{}
	}
	return m, nil
}

func (s *AlertStore) save(m map[string]models.AlertLevel) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// WithLock reloads the map from disk, runs fn, and persists whatever fn
// leaves in the map — the single critical section spec.md §4.5/§5
// requires for every alert-state read-modify-write.
func (s *AlertStore) WithLock(fn func(m map[string]models.AlertLevel) (changed bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	if fn(m) {
		return s.save(m)
	}
	return nil
}

// Snapshot returns a read-only copy of the current persisted state, used by
// NodeAlertStatus (spec.md §4.5's read-only aggregation helper).
func (s *AlertStore) Snapshot() (map[string]models.AlertLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}
