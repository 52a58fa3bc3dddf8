package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

type batchRow struct {
	ID              uuid.UUID      `db:"id"`
	EventID         uuid.UUID      `db:"event_id"`
	Channel         string         `db:"channel"`
	Message         sql.NullString `db:"message"`
	TotalRecipients int            `db:"total_recipients"`
	SuccessfulCount int            `db:"successful_count"`
	FailedCount     int            `db:"failed_count"`
	SkippedCount    int            `db:"skipped_count"`
	Status          string         `db:"status"`
	InitiatedBy     string         `db:"initiated_by"`
	Metadata        sql.NullString `db:"metadata"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

const batchColumns = `id, event_id, channel, message, total_recipients, successful_count, failed_count,
	skipped_count, status, initiated_by, metadata, created_at, updated_at`

type BatchRepository struct {
	db *sqlx.DB
}

func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *BatchRepository) Create(ctx context.Context, b *model.NotificationBatch) error {
	metadata, err := encodeMetadata(b.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO notification_batches (`+batchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.EventID, string(b.Channel), b.Message, b.TotalRecipients, b.SuccessfulCount, b.FailedCount,
		b.SkippedCount, string(b.Status), b.InitiatedBy, metadata, b.CreatedAt, b.UpdatedAt,
	)
	return errors.Wrap(err, "insert notification batch")
}

// Update writes the mutable part of a batch: counts, status and metadata.
func (r *BatchRepository) Update(ctx context.Context, b *model.NotificationBatch) error {
	metadata, err := encodeMetadata(b.Metadata)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE notification_batches
		SET successful_count = ?, failed_count = ?, skipped_count = ?, status = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		b.SuccessfulCount, b.FailedCount, b.SkippedCount, string(b.Status), metadata, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update notification batch")
	}
	return requireRow(res, model.ErrBatchNotFound)
}

func (r *BatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.NotificationBatch, error) {
	var row batchRow
	err := r.db.GetContext(ctx, &row, `SELECT `+batchColumns+` FROM notification_batches WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBatchNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select notification batch")
	}

	metadata := map[string]string{}
	if row.Metadata.Valid && row.Metadata.String != "" {
		if err := json.Unmarshal([]byte(row.Metadata.String), &metadata); err != nil {
			return nil, errors.Wrap(err, "decode batch metadata")
		}
	}
	return &model.NotificationBatch{
		ID:              row.ID,
		EventID:         row.EventID,
		Channel:         model.Channel(row.Channel),
		Message:         row.Message.String,
		TotalRecipients: row.TotalRecipients,
		SuccessfulCount: row.SuccessfulCount,
		FailedCount:     row.FailedCount,
		SkippedCount:    row.SkippedCount,
		Status:          model.BatchStatus(row.Status),
		InitiatedBy:     row.InitiatedBy,
		Metadata:        metadata,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return "", errors.Wrap(err, "encode batch metadata")
	}
	return string(payload), nil
}
