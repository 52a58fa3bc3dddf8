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

type notificationRow struct {
	ID                uuid.UUID      `db:"id"`
	EventID           uuid.UUID      `db:"event_id"`
	RecipientID       uuid.UUID      `db:"recipient_id"`
	Channel           string         `db:"channel"`
	Status            string         `db:"status"`
	Body              string         `db:"body"`
	Address           string         `db:"address"`
	ProviderMessageID string         `db:"provider_message_id"`
	Error             sql.NullString `db:"error"`
	BatchID           uuid.NullUUID  `db:"batch_id"`
	SentAt            sql.NullTime   `db:"sent_at"`
	DeliveredAt       sql.NullTime   `db:"delivered_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r notificationRow) toModel() model.Notification {
	return model.Notification{
		ID:                r.ID,
		EventID:           r.EventID,
		RecipientID:       r.RecipientID,
		Channel:           model.Channel(r.Channel),
		Status:            model.NotificationStatus(r.Status),
		Body:              r.Body,
		Address:           r.Address,
		ProviderMessageID: r.ProviderMessageID,
		Error:             r.Error.String,
		BatchID:           r.BatchID,
		SentAt:            timePtr(r.SentAt),
		DeliveredAt:       timePtr(r.DeliveredAt),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

const notificationColumns = `id, event_id, recipient_id, channel, status, body, address, provider_message_id,
	error, batch_id, sent_at, delivered_at, created_at, updated_at`

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

// Save stores a notification once its outcome is known. Rows are never updated afterwards.
func (r *NotificationRepository) Save(ctx context.Context, n *model.Notification) error {
	if err := checkAddress(n.Address); err != nil {
		return err
	}
	var errText sql.NullString
	if n.Error != "" {
		errText = sql.NullString{String: n.Error, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.EventID, n.RecipientID, string(n.Channel), string(n.Status), n.Body, n.Address, n.ProviderMessageID,
		errText, n.BatchID, nullTime(n.SentAt), nullTime(n.DeliveredAt), n.CreatedAt, n.UpdatedAt,
	)
	return errors.Wrap(err, "insert notification")
}

func (r *NotificationRepository) CountByRecipientAndChannel(ctx context.Context, recipientID uuid.UUID, channel model.Channel) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND channel = ?`, recipientID, string(channel))
	return n, errors.Wrap(err, "count notifications")
}

func (r *NotificationRepository) FindByRecipientID(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	return r.selectWhere(ctx, "recipient_id = ?", recipientID)
}

func (r *NotificationRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]model.Notification, error) {
	return r.selectWhere(ctx, "event_id = ?", eventID)
}

func (r *NotificationRepository) FindByBatchID(ctx context.Context, batchID uuid.UUID) ([]model.Notification, error) {
	return r.selectWhere(ctx, "batch_id = ?", batchID)
}

func (r *NotificationRepository) selectWhere(ctx context.Context, cond string, arg interface{}) ([]model.Notification, error) {
	var rows []notificationRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+cond+` ORDER BY created_at DESC, id`, arg)
	if err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	notifications := make([]model.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, row.toModel())
	}
	return notifications, nil
}
