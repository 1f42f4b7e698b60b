package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	userColumns     = `id, name, email, password_hash, created_at, updated_at`
	calendarColumns = `id, user_id, name, description, color, is_public, created_at, updated_at`
	eventColumns    = `id, calendar_id, title, description, location, start_time, end_time, is_all_day, created_at, updated_at`
	shareColumns    = `id, calendar_id, user_id, shared_with_user_id, shared_with_email, permission_level, created_at`
)

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

func scanCalendar(row pgx.Row) (*Calendar, error) {
	var c Calendar
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.Color, &c.IsPublic, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	if err := row.Scan(&e.ID, &e.CalendarID, &e.Title, &e.Description, &e.Location, &e.StartTime, &e.EndTime, &e.IsAllDay, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, translateError(err)
	}
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()
	return &e, nil
}

func scanShare(row pgx.Row) (*Share, error) {
	var s Share
	var permission string
	if err := row.Scan(&s.ID, &s.CalendarID, &s.UserID, &s.SharedWithUserID, &s.SharedWithEmail, &permission, &s.CreatedAt); err != nil {
		return nil, translateError(err)
	}
	s.Permission = PermissionLevel(permission)
	return &s, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func execAffectingOne(ctx context.Context, db execer, sql string, args ...any) error {
	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// userRepo implements UserRepository.
type userRepo struct {
	pool dbPool
}

func (r *userRepo) Create(ctx context.Context, user User) (*User, error) {
	defer observeDB(ctx, "users.create")()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	const q = `INSERT INTO users (id, name, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns
	created, err := scanUser(r.pool.QueryRow(ctx, q, user.ID, user.Name, strings.TrimSpace(user.Email), user.PasswordHash))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	defer observeDB(ctx, "users.get_by_id")()
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	defer observeDB(ctx, "users.get_by_email")()
	const q = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email)=LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, q, strings.TrimSpace(email)))
}

// calendarRepo implements CalendarRepository.
type calendarRepo struct {
	pool dbPool
}

func (r *calendarRepo) GetByID(ctx context.Context, id uuid.UUID) (*Calendar, error) {
	defer observeDB(ctx, "calendars.get_by_id")()
	return scanCalendar(r.pool.QueryRow(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id=$1`, id))
}

func (r *calendarRepo) ListByOwner(ctx context.Context, userID uuid.UUID) ([]Calendar, error) {
	defer observeDB(ctx, "calendars.list_by_owner")()
	const q = `SELECT ` + calendarColumns + ` FROM calendars WHERE user_id=$1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return collect(rows, scanCalendar)
}

func (r *calendarRepo) Create(ctx context.Context, cal Calendar) (*Calendar, error) {
	defer observeDB(ctx, "calendars.create")()
	if cal.ID == uuid.Nil {
		cal.ID = uuid.New()
	}
	const q = `INSERT INTO calendars (id, user_id, name, description, color, is_public)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + calendarColumns
	created, err := scanCalendar(r.pool.QueryRow(ctx, q, cal.ID, cal.UserID, cal.Name, cal.Description, cal.Color, cal.IsPublic))
	if err != nil {
		return nil, fmt.Errorf("create calendar: %w", err)
	}
	return created, nil
}

// Update locks the row, applies the present fields and writes it back in one transaction.
func (r *calendarRepo) Update(ctx context.Context, id uuid.UUID, update CalendarUpdate) (*Calendar, error) {
	defer observeDB(ctx, "calendars.update")()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin calendar update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanCalendar(tx.QueryRow(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if v, ok := update.Name.Get(); ok {
		current.Name = v
	}
	if v, ok := update.Description.Get(); ok {
		current.Description = &v
	}
	if v, ok := update.Color.Get(); ok {
		current.Color = &v
	}
	if v, ok := update.IsPublic.Get(); ok {
		current.IsPublic = v
	}
	current.UpdatedAt = time.Now().UTC()

	const q = `UPDATE calendars SET name=$2, description=$3, color=$4, is_public=$5, updated_at=$6 WHERE id=$1`
	if _, err := tx.Exec(ctx, q, current.ID, current.Name, current.Description, current.Color, current.IsPublic, current.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update calendar: %w", translateError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit calendar update: %w", err)
	}
	return current, nil
}

func (r *calendarRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "calendars.delete")()
	return execAffectingOne(ctx, r.pool, `DELETE FROM calendars WHERE id=$1`, id)
}

// eventRepo implements EventRepository.
type eventRepo struct {
	pool dbPool
}

func (r *eventRepo) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	defer observeDB(ctx, "events.get_by_id")()
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id))
}

func (r *eventRepo) ListForCalendar(ctx context.Context, calendarID uuid.UUID) ([]Event, error) {
	defer observeDB(ctx, "events.list_for_calendar")()
	const q = `SELECT ` + eventColumns + ` FROM events WHERE calendar_id=$1 ORDER BY start_time, id`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collect(rows, scanEvent)
}

func (r *eventRepo) Create(ctx context.Context, calendarID uuid.UUID, draft EventDraft) (*Event, error) {
	defer observeDB(ctx, "events.create")()
	const q = `INSERT INTO events (id, calendar_id, title, description, location, start_time, end_time, is_all_day)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + eventColumns
	created, err := scanEvent(r.pool.QueryRow(ctx, q,
		uuid.New(), calendarID, draft.Title, draft.Description, draft.Location,
		draft.StartTime.UTC(), draft.EndTime.UTC(), draft.IsAllDay))
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return created, nil
}

// Update locks the row, applies the present fields and writes it back in one transaction.
func (r *eventRepo) Update(ctx context.Context, id uuid.UUID, update EventUpdate) (*Event, error) {
	defer observeDB(ctx, "events.update")()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin event update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if v, ok := update.Title.Get(); ok {
		current.Title = v
	}
	if v, ok := update.Description.Get(); ok {
		current.Description = &v
	}
	if v, ok := update.Location.Get(); ok {
		current.Location = &v
	}
	if v, ok := update.StartTime.Get(); ok {
		current.StartTime = v.UTC()
	}
	if v, ok := update.EndTime.Get(); ok {
		current.EndTime = v.UTC()
	}
	if v, ok := update.IsAllDay.Get(); ok {
		current.IsAllDay = v
	}
	current.UpdatedAt = time.Now().UTC()

	const q = `UPDATE events SET title=$2, description=$3, location=$4, start_time=$5, end_time=$6, is_all_day=$7, updated_at=$8 WHERE id=$1`
	if _, err := tx.Exec(ctx, q, current.ID, current.Title, current.Description, current.Location,
		current.StartTime, current.EndTime, current.IsAllDay, current.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update event: %w", translateError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit event update: %w", err)
	}
	return current, nil
}

func (r *eventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "events.delete")()
	return execAffectingOne(ctx, r.pool, `DELETE FROM events WHERE id=$1`, id)
}

// shareRepo implements ShareRepository.
type shareRepo struct {
	pool dbPool
}

func (r *shareRepo) Create(ctx context.Context, share Share) (*Share, error) {
	defer observeDB(ctx, "shares.create")()
	if share.ID == uuid.Nil {
		share.ID = uuid.New()
	}
	const q = `INSERT INTO calendar_shares (id, calendar_id, user_id, shared_with_user_id, shared_with_email, permission_level)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + shareColumns
	created, err := scanShare(r.pool.QueryRow(ctx, q, share.ID, share.CalendarID, share.UserID,
		share.SharedWithUserID, share.SharedWithEmail, string(share.Permission)))
	if err != nil {
		return nil, fmt.Errorf("create share: %w", err)
	}
	return created, nil
}

func (r *shareRepo) GetByID(ctx context.Context, id uuid.UUID) (*Share, error) {
	defer observeDB(ctx, "shares.get_by_id")()
	return scanShare(r.pool.QueryRow(ctx, `SELECT `+shareColumns+` FROM calendar_shares WHERE id=$1`, id))
}

func (r *shareRepo) ListForCalendar(ctx context.Context, calendarID uuid.UUID) ([]Share, error) {
	defer observeDB(ctx, "shares.list_for_calendar")()
	const q = `SELECT ` + shareColumns + ` FROM calendar_shares WHERE calendar_id=$1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	return collect(rows, scanShare)
}

func (r *shareRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "shares.delete")()
	return execAffectingOne(ctx, r.pool, `DELETE FROM calendar_shares WHERE id=$1`, id)
}
