package calendar

import (
	"sort"
	"sync"

	"ownercal/internal/domain/shared/daterange"
)

// Store caches day records of one property keyed by date, plus the set of
// pages fetched so far. A missing date means "not loaded yet".
type Store struct {
	mu     sync.RWMutex
	days   map[daterange.Date]DayRecord
	loaded map[Page]struct{}
}

func NewStore() *Store {
	return &Store{
		days:   make(map[daterange.Date]DayRecord),
		loaded: make(map[Page]struct{}),
	}
}

// Merge inserts or overwrites records by date and reports how many entries changed.
func (s *Store) Merge(records ...DayRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, rec := range records {
		if rec.Date.IsZero() {
			continue
		}
		if prev, ok := s.days[rec.Date]; ok && prev.equal(rec) {
			continue
		}
		s.days[rec.Date] = rec
		changed++
	}
	return changed
}

func (s *Store) Get(d daterange.Date) (DayRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.days[d]
	return rec, ok
}

func (s *Store) IsPageLoaded(p Page) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loaded[p]
	return ok
}

func (s *Store) MarkPageLoaded(p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded[p] = struct{}{}
}

// Invalidate drops every record and loaded page ahead of a full resync.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = make(map[daterange.Date]DayRecord)
	s.loaded = make(map[Page]struct{})
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days)
}

func (s *Store) LoadedPages() []Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Page, 0, len(s.loaded))
	for p := range s.loaded {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance(out[j]) > 0 })
	return out
}

// Days returns the loaded records inside r ordered by date.
func (s *Store) Days(r daterange.DateRange) []DayRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DayRecord, 0, r.Len())
	for _, d := range r.Days() {
		if rec, ok := s.days[d]; ok {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) Snapshot() []DayRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DayRecord, 0, len(s.days))
	for _, rec := range s.days {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// FirstImmutable finds the earliest loaded past or booked day of r. Days that
// were never loaded count as available.
func (s *Store) FirstImmutable(r daterange.DateRange) (DayRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range r.Days() {
		if rec, ok := s.days[d]; ok && rec.Immutable() {
			return rec, true
		}
	}
	return DayRecord{}, false
}

func (s *Store) IsRangeValid(r daterange.DateRange) bool {
	if r.Validate() != nil {
		return false
	}
	_, blocked := s.FirstImmutable(r)
	return !blocked
}
