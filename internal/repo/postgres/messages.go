package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/message"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessagesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewMessagesRepo(pool *pgxpool.Pool, prom *observability.Prom) *MessagesRepo {
	return &MessagesRepo{pool: pool, prom: prom}
}

// Send resolves the receiver by email and stores the message in one statement.
func (r *MessagesRepo) Send(ctx context.Context, senderID int64, receiverEmail, content string) (message.Message, error) {
	var m message.Message

	err := observe(r.prom, "messages.send", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO messages (content, sender_id, receiver_id)
			SELECT $1, $2, u.id FROM users u WHERE u.email = $3
			RETURNING id, content, sender_id, receiver_id, created_at`,
			content, senderID, strings.ToLower(strings.TrimSpace(receiverEmail)),
		).Scan(&m.ID, &m.Content, &m.SenderID, &m.ReceiverID, &m.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Message{}, message.ErrRecipientNotFound
		}
		return message.Message{}, err
	}

	return m, nil
}

// ListReceived returns messages addressed to userID, newest first.
func (r *MessagesRepo) ListReceived(ctx context.Context, userID int64) ([]message.Received, error) {
	out := make([]message.Received, 0)

	err := observe(r.prom, "messages.list_received", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT m.id, m.content, m.created_at, s.email, s.first_name, s.last_name
			FROM messages m
			JOIN users s ON s.id = m.sender_id
			WHERE m.receiver_id = $1
			ORDER BY m.created_at DESC, m.id DESC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m message.Received
			if err := rows.Scan(&m.ID, &m.Content, &m.CreatedAt, &m.SenderEmail, &m.SenderFirstName, &m.SenderLastName); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
