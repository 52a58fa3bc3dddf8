package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

type eventRow struct {
	ID        uuid.UUID    `db:"id"`
	Name      string       `db:"name"`
	Type      string       `db:"type"`
	Date      sql.NullTime `db:"event_date"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	var date sql.NullTime
	if !event.Date.IsZero() {
		date = sql.NullTime{Time: event.Date, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, name, type, event_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Name, string(event.Type), date, event.CreatedAt, event.UpdatedAt,
	)
	return errors.Wrap(err, "insert event")
}

func (r *EventRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var row eventRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, name, type, event_date, created_at, updated_at FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select event")
	}
	return &model.Event{
		ID:        row.ID,
		Name:      row.Name,
		Type:      model.EventType(row.Type),
		Date:      row.Date.Time,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
