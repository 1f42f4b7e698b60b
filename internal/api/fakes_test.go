package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitea.jw6.us/james/calhub/internal/store"
)

type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*store.User
	calendars map[uuid.UUID]*store.Calendar
	events    map[uuid.UUID]*store.Event
	shares    map[uuid.UUID]*store.Share
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uuid.UUID]*store.User{},
		calendars: map[uuid.UUID]*store.Calendar{},
		events:    map[uuid.UUID]*store.Event{},
		shares:    map[uuid.UUID]*store.Share{},
	}
}

func (m *memStore) Store() *store.Store {
	return &store.Store{
		Users:     memUsers{m},
		Calendars: memCalendars{m},
		Events:    memEvents{m},
		Shares:    memShares{m},
	}
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(ctx context.Context, user store.User) (*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == user.Email {
			return nil, store.ErrConflict
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.m.users[user.ID] = &user
	out := user
	return &out, nil
}

func (r memUsers) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

type memCalendars struct{ m *memStore }

func (r memCalendars) GetByID(ctx context.Context, id uuid.UUID) (*store.Calendar, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.calendars[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r memCalendars) ListByOwner(ctx context.Context, userID uuid.UUID) ([]store.Calendar, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []store.Calendar
	for _, c := range r.m.calendars {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r memCalendars) Create(ctx context.Context, cal store.Calendar) (*store.Calendar, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cal.ID = uuid.New()
	r.m.calendars[cal.ID] = &cal
	out := cal
	return &out, nil
}

func (r memCalendars) Update(ctx context.Context, id uuid.UUID, update store.CalendarUpdate) (*store.Calendar, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.calendars[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if v, ok := update.Name.Get(); ok {
		c.Name = v
	}
	if v, ok := update.Description.Get(); ok {
		c.Description = &v
	}
	if v, ok := update.Color.Get(); ok {
		c.Color = &v
	}
	if v, ok := update.IsPublic.Get(); ok {
		c.IsPublic = v
	}
	out := *c
	return &out, nil
}

func (r memCalendars) Delete(ctx context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.calendars[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.calendars, id)
	for evID, ev := range r.m.events {
		if ev.CalendarID == id {
			delete(r.m.events, evID)
		}
	}
	return nil
}

type memEvents struct{ m *memStore }

func (r memEvents) GetByID(ctx context.Context, id uuid.UUID) (*store.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (r memEvents) ListForCalendar(ctx context.Context, calendarID uuid.UUID) ([]store.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []store.Event
	for _, e := range r.m.events {
		if e.CalendarID == calendarID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r memEvents) Create(ctx context.Context, calendarID uuid.UUID, draft store.EventDraft) (*store.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ev := store.Event{
		ID:          uuid.New(),
		CalendarID:  calendarID,
		Title:       draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		StartTime:   draft.StartTime.UTC(),
		EndTime:     draft.EndTime.UTC(),
		IsAllDay:    draft.IsAllDay,
	}
	r.m.events[ev.ID] = &ev
	out := ev
	return &out, nil
}

func (r memEvents) Update(ctx context.Context, id uuid.UUID, update store.EventUpdate) (*store.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if v, ok := update.Title.Get(); ok {
		e.Title = v
	}
	if v, ok := update.Description.Get(); ok {
		e.Description = &v
	}
	if v, ok := update.Location.Get(); ok {
		e.Location = &v
	}
	if v, ok := update.StartTime.Get(); ok {
		e.StartTime = v
	}
	if v, ok := update.EndTime.Get(); ok {
		e.EndTime = v
	}
	if v, ok := update.IsAllDay.Get(); ok {
		e.IsAllDay = v
	}
	out := *e
	return &out, nil
}

func (r memEvents) Delete(ctx context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.events, id)
	return nil
}

type memShares struct{ m *memStore }

func (r memShares) Create(ctx context.Context, share store.Share) (*store.Share, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.shares {
		if s.CalendarID == share.CalendarID && s.SharedWithEmail == share.SharedWithEmail {
			return nil, store.ErrConflict
		}
	}
	share.ID = uuid.New()
	share.CreatedAt = time.Now()
	r.m.shares[share.ID] = &share
	out := share
	return &out, nil
}

func (r memShares) GetByID(ctx context.Context, id uuid.UUID) (*store.Share, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.shares[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (r memShares) ListForCalendar(ctx context.Context, calendarID uuid.UUID) ([]store.Share, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []store.Share
	for _, s := range r.m.shares {
		if s.CalendarID == calendarID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r memShares) Delete(ctx context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.shares[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.shares, id)
	return nil
}
