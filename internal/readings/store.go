// Package readings holds the consumption record store and the loaders
// that fill it from CSV and XLSX meter exports. It is an external
// collaborator of the gap-fill engine: the engine only ever reads an
// immutable snapshot through the gapfill.RecordSource interface.
package readings

import (
	"sort"
	"sync"

	"meterfill/pkg/contracts/domain"
)

// SiteInfo summarizes one site's coverage for the read-side API.
type SiteInfo struct {
	SiteID     string       `json:"site_id"`
	Records    int          `json:"records"`
	Invalid    int          `json:"invalid_records"`
	FirstMonth domain.Month `json:"first_month"`
	LastMonth  domain.Month `json:"last_month"`
}

// Snapshot is an immutable view of a loaded record set with a per-site
// index built once at construction. Snapshots are never mutated after
// NewSnapshot returns, so any number of concurrent evaluations can read
// one snapshot without coordination.
type Snapshot struct {
	records []domain.ConsumptionRecord
	bySite  map[string][]domain.ConsumptionRecord
}

// NewSnapshot copies the given records and indexes them by site.
func NewSnapshot(records []domain.ConsumptionRecord) *Snapshot {
	owned := make([]domain.ConsumptionRecord, len(records))
	copy(owned, records)

	bySite := make(map[string][]domain.ConsumptionRecord)
	for _, rec := range owned {
		bySite[rec.SiteID] = append(bySite[rec.SiteID], rec)
	}

	return &Snapshot{records: owned, bySite: bySite}
}

// RecordsForSite implements gapfill.RecordSource.
func (s *Snapshot) RecordsForSite(siteID string) []domain.ConsumptionRecord {
	return s.bySite[siteID]
}

// Len returns the total number of records, valid or not.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// SiteIDs returns every known site id in stable sorted order.
func (s *Snapshot) SiteIDs() []string {
	ids := make([]string, 0, len(s.bySite))
	for id := range s.bySite {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sites returns per-site coverage summaries in stable sorted order.
func (s *Snapshot) Sites() []SiteInfo {
	infos := make([]SiteInfo, 0, len(s.bySite))
	for _, id := range s.SiteIDs() {
		info := SiteInfo{SiteID: id}
		for _, rec := range s.bySite[id] {
			info.Records++
			if !rec.Valid {
				info.Invalid++
				continue
			}
			if info.FirstMonth.IsZero() || rec.Month.Before(info.FirstMonth) {
				info.FirstMonth = rec.Month
			}
			if info.LastMonth.IsZero() || rec.Month.After(info.LastMonth) {
				info.LastMonth = rec.Month
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// Store is a mutable holder of the current snapshot. Replace swaps the
// whole snapshot atomically, so in-flight evaluations keep the view
// they started with while new evaluations see the fresh data.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore creates a store holding an empty snapshot.
func NewStore() *Store {
	return &Store{snap: NewSnapshot(nil)}
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Replace installs a new snapshot.
func (s *Store) Replace(snap *Snapshot) {
	if snap == nil {
		snap = NewSnapshot(nil)
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}
