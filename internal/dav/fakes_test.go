package dav

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"gitea.jw6.us/james/calhub/internal/store"
)

var errDatabase = errors.New("database unavailable")

type fakeCalendarRepo struct {
	calendars map[uuid.UUID]*store.Calendar
	created   []store.Calendar
	listErr   error
}

func (f *fakeCalendarRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Calendar, error) {
	cal, ok := f.calendars[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *cal
	return &out, nil
}

func (f *fakeCalendarRepo) ListByOwner(ctx context.Context, userID uuid.UUID) ([]store.Calendar, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []store.Calendar
	for _, cal := range f.calendars {
		if cal.UserID == userID {
			out = append(out, *cal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCalendarRepo) Create(ctx context.Context, cal store.Calendar) (*store.Calendar, error) {
	cal.ID = uuid.New()
	if f.calendars == nil {
		f.calendars = map[uuid.UUID]*store.Calendar{}
	}
	f.calendars[cal.ID] = &cal
	f.created = append(f.created, cal)
	return &cal, nil
}

func (f *fakeCalendarRepo) Update(ctx context.Context, id uuid.UUID, update store.CalendarUpdate) (*store.Calendar, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCalendarRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

type fakeEventRepo struct {
	events  map[uuid.UUID]*store.Event
	created []store.Event
	deleted []uuid.UUID
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *ev
	return &out, nil
}

func (f *fakeEventRepo) ListForCalendar(ctx context.Context, calendarID uuid.UUID) ([]store.Event, error) {
	var out []store.Event
	for _, ev := range f.events {
		if ev.CalendarID == calendarID {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeEventRepo) Create(ctx context.Context, calendarID uuid.UUID, draft store.EventDraft) (*store.Event, error) {
	ev := store.Event{
		ID:          uuid.New(),
		CalendarID:  calendarID,
		Title:       draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		StartTime:   draft.StartTime,
		EndTime:     draft.EndTime,
		IsAllDay:    draft.IsAllDay,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if f.events == nil {
		f.events = map[uuid.UUID]*store.Event{}
	}
	f.events[ev.ID] = &ev
	f.created = append(f.created, ev)
	return &ev, nil
}

func (f *fakeEventRepo) Update(ctx context.Context, id uuid.UUID, update store.EventUpdate) (*store.Event, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.events, id)
	f.deleted = append(f.deleted, id)
	return nil
}
