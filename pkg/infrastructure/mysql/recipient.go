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

type recipientRow struct {
	ID              uuid.UUID    `db:"id"`
	EventID         uuid.UUID    `db:"event_id"`
	FirstName       string       `db:"first_name"`
	LastName        string       `db:"last_name"`
	Phone           string       `db:"phone"`
	Status          string       `db:"status"`
	PartySize       int          `db:"party_size"`
	SMSCount        int          `db:"sms_count"`
	ChatCount       int          `db:"chat_count"`
	VoiceCount      int          `db:"voice_count"`
	LastContactedAt sql.NullTime `db:"last_contacted_at"`
	ConfirmedAt     sql.NullTime `db:"confirmed_at"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (r recipientRow) toModel() model.Recipient {
	return model.Recipient{
		ID:              r.ID,
		EventID:         r.EventID,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Phone:           r.Phone,
		Status:          model.RSVPStatus(r.Status),
		PartySize:       r.PartySize,
		SMSCount:        r.SMSCount,
		ChatCount:       r.ChatCount,
		VoiceCount:      r.VoiceCount,
		LastContactedAt: timePtr(r.LastContactedAt),
		ConfirmedAt:     timePtr(r.ConfirmedAt),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// maxAddressLength is the width of recipients.phone and notifications.address.
const maxAddressLength = 64

// ErrAddressTooLong is returned instead of letting a strict-mode server reject the row.
var ErrAddressTooLong = errors.New("contact address exceeds 64 characters")

func checkAddress(address string) error {
	if len(address) > maxAddressLength {
		return errors.Wrapf(ErrAddressTooLong, "%d characters", len(address))
	}
	return nil
}

const recipientColumns = `id, event_id, first_name, last_name, phone, status, party_size,
	sms_count, chat_count, voice_count, last_contacted_at, confirmed_at, created_at, updated_at`

// counterColumns keeps channel names out of SQL text built at runtime.
var counterColumns = map[model.Channel]string{
	model.SMS:   "sms_count",
	model.Chat:  "chat_count",
	model.Voice: "voice_count",
}

type RecipientRepository struct {
	db *sqlx.DB
}

func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// Create stores a new recipient. Invitees are normally imported by other tooling.
func (r *RecipientRepository) Create(ctx context.Context, recipient *model.Recipient) error {
	if err := checkAddress(recipient.Phone); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO recipients (`+recipientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recipient.ID, recipient.EventID, recipient.FirstName, recipient.LastName, recipient.Phone,
		string(recipient.Status), recipient.PartySize, recipient.SMSCount, recipient.ChatCount, recipient.VoiceCount,
		nullTime(recipient.LastContactedAt), nullTime(recipient.ConfirmedAt), recipient.CreatedAt, recipient.UpdatedAt,
	)
	return errors.Wrap(err, "insert recipient")
}

func (r *RecipientRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Recipient, error) {
	var row recipientRow
	err := r.db.GetContext(ctx, &row, `SELECT `+recipientColumns+` FROM recipients WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRecipientNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select recipient")
	}
	recipient := row.toModel()
	return &recipient, nil
}

func (r *RecipientRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]model.Recipient, error) {
	var rows []recipientRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+recipientColumns+` FROM recipients WHERE event_id = ? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "select event recipients")
	}
	recipients := make([]model.Recipient, 0, len(rows))
	for _, row := range rows {
		recipients = append(recipients, row.toModel())
	}
	return recipients, nil
}

func (r *RecipientRepository) UpdateCounters(ctx context.Context, id uuid.UUID, update model.RecipientCounterUpdate) error {
	column, ok := counterColumns[update.Channel]
	if !ok {
		return errors.Wrapf(model.ErrUnsupportedChannel, "channel %q", update.Channel)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE recipients SET `+column+` = ?, last_contacted_at = ?, updated_at = ? WHERE id = ?`,
		update.NewCount, update.LastContactedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "update recipient counters")
	}
	return requireRow(res, model.ErrRecipientNotFound)
}

func (r *RecipientRepository) UpdateRSVP(ctx context.Context, id uuid.UUID, update model.RecipientRSVPUpdate) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recipients
		SET status = ?, confirmed_at = ?, party_size = CASE WHEN ? > 0 THEN ? ELSE party_size END, updated_at = ?
		WHERE id = ?`,
		string(update.Status), nullTime(update.ConfirmedAt), update.PartySize, update.PartySize, time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "update recipient rsvp")
	}
	return requireRow(res, model.ErrRecipientNotFound)
}

func (r *RecipientRepository) CountByStatus(ctx context.Context, eventID uuid.UUID, status model.RSVPStatus) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM recipients WHERE event_id = ? AND status = ?`, eventID, string(status))
	return n, errors.Wrap(err, "count recipients")
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
