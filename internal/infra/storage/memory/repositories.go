package memory

import (
	"context"
	"sync"

	domain "ownercal/internal/domain/availability"
)

// CalendarRepository keeps property calendars in memory. Reads hand out
// copies so concurrent requests never share an aggregate.
type CalendarRepository struct {
	mu        sync.RWMutex
	calendars map[domain.PropertyID]*domain.PropertyCalendar
}

func NewCalendarRepository(seed ...*domain.PropertyCalendar) *CalendarRepository {
	r := &CalendarRepository{calendars: make(map[domain.PropertyID]*domain.PropertyCalendar)}
	for _, cal := range seed {
		r.calendars[cal.PropertyID] = cal.Clone()
	}
	return r
}

// Calendar returns a copy of the stored calendar or domain.ErrPropertyNotFound.
func (r *CalendarRepository) Calendar(ctx context.Context, id domain.PropertyID) (*domain.PropertyCalendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cal, ok := r.calendars[id]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	return cal.Clone(), nil
}

// Save stores cal when its version matches the stored one and bumps it.
func (r *CalendarRepository) Save(ctx context.Context, cal *domain.PropertyCalendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.calendars[cal.PropertyID]; ok && current.Version != cal.Version {
		return domain.ErrConcurrentUpdate
	}
	cal.Version++
	r.calendars[cal.PropertyID] = cal.Clone()
	return nil
}

func (r *CalendarRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calendars)
}

var _ domain.Repository = (*CalendarRepository)(nil)
