package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"arenadesk/internal/messaging"
	"arenadesk/pkg/platform/sentinel"
	txcontext "arenadesk/pkg/platform/tx"
)

//go:embed schema.sql
var Schema string

const defaultCreateTimeout = 5 * time.Second

// Postgres implements messaging.Store. The create path runs inside one
// transaction covering the message row, every recipient link, and the
// outbox entry the delivery worker publishes later; a failure anywhere
// rolls the whole unit back.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres creates a PostgreSQL-backed messaging store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, timeout: defaultCreateTimeout}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON body published to the broker for one broadcast.
type outboxPayload struct {
	MessageID  int64   `json:"message_id"`
	SenderID   int64   `json:"sender_id"`
	Body       string  `json:"body"`
	Recipients []int64 `json:"recipients"`
	CreatedAt  string  `json:"created_at"`
}

func (s *Postgres) CreateMessageWithRecipients(ctx context.Context, senderID int64, text string, recipientIDs []int64) (messaging.Message, []int64, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return messaging.Message{}, nil, fmt.Errorf("begin broadcast tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	ctx = txcontext.WithTx(ctx, tx)

	msg, err := s.insertMessage(ctx, senderID, text)
	if err != nil {
		return messaging.Message{}, nil, err
	}

	linked, err := s.insertRecipients(ctx, msg.ID, recipientIDs)
	if err != nil {
		return messaging.Message{}, nil, err
	}

	if err := s.insertOutbox(ctx, msg, linked); err != nil {
		return messaging.Message{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return messaging.Message{}, nil, fmt.Errorf("commit broadcast tx: %w", err)
	}
	return msg, linked, nil
}

func (s *Postgres) insertMessage(ctx context.Context, senderID int64, text string) (messaging.Message, error) {
	msg := messaging.Message{SenderID: senderID, Text: text}
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO messages (sender_id, body)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, senderID, text).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return messaging.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *Postgres) insertRecipients(ctx context.Context, messageID int64, recipientIDs []int64) ([]int64, error) {
	if len(recipientIDs) == 0 {
		return []int64{}, nil
	}
	// One statement for the whole set; unnest keeps the round trip count
	// independent of fan-out size.
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO message_recipients (message_id, recipient_id)
		SELECT $1, unnest($2::bigint[])
	`, messageID, pq.Array(recipientIDs))
	if err != nil {
		return nil, fmt.Errorf("insert recipient links: %w", err)
	}
	return recipientIDs, nil
}

func (s *Postgres) insertOutbox(ctx context.Context, msg messaging.Message, recipients []int64) error {
	payload, err := json.Marshal(outboxPayload{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		Body:       msg.Text,
		Recipients: recipients,
		CreatedAt:  msg.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO message_outbox (id, message_id, payload)
		VALUES ($1, $2, $3)
	`, uuid.New(), msg.ID, payload)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *Postgres) GetMessage(ctx context.Context, id int64) (messaging.Message, error) {
	var msg messaging.Message
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, body, created_at
		FROM messages
		WHERE id = $1
	`, id).Scan(&msg.ID, &msg.SenderID, &msg.Text, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return messaging.Message{}, fmt.Errorf("message %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return messaging.Message{}, fmt.Errorf("get message %d: %w", id, err)
	}
	return msg, nil
}

func (s *Postgres) ListRecipients(ctx context.Context, messageID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recipient_id
		FROM message_recipients
		WHERE message_id = $1
		ORDER BY recipient_id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list recipients of %d: %w", messageID, err)
	}
	defer rows.Close()

	recipients := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return recipients, nil
}
