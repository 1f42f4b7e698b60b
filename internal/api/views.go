package api

import (
	"time"

	"github.com/google/uuid"

	"gitea.jw6.us/james/calhub/internal/store"
)

type userView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserView(u *store.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

type sessionView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

type calendarView struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Color       *string   `json:"color"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newCalendarView(c *store.Calendar) calendarView {
	return calendarView{
		ID:          c.ID,
		UserID:      c.UserID,
		Name:        c.Name,
		Description: c.Description,
		Color:       c.Color,
		IsPublic:    c.IsPublic,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type eventView struct {
	ID          uuid.UUID `json:"id"`
	CalendarID  uuid.UUID `json:"calendar_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Location    *string   `json:"location"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAllDay    bool      `json:"is_all_day"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newEventView(e *store.Event) eventView {
	return eventView{
		ID:          e.ID,
		CalendarID:  e.CalendarID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		StartTime:   e.StartTime.UTC(),
		EndTime:     e.EndTime.UTC(),
		IsAllDay:    e.IsAllDay,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

type shareView struct {
	ID               uuid.UUID  `json:"id"`
	CalendarID       uuid.UUID  `json:"calendar_id"`
	UserID           uuid.UUID  `json:"user_id"`
	SharedWithUserID *uuid.UUID `json:"shared_with_user_id"`
	SharedWithEmail  string     `json:"shared_with_email"`
	PermissionLevel  string     `json:"permission_level"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newShareView(s *store.Share) shareView {
	return shareView{
		ID:               s.ID,
		CalendarID:       s.CalendarID,
		UserID:           s.UserID,
		SharedWithUserID: s.SharedWithUserID,
		SharedWithEmail:  s.SharedWithEmail,
		PermissionLevel:  string(s.Permission),
		CreatedAt:        s.CreatedAt,
	}
}
