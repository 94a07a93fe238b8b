package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/message"
)

type MessagesRepo struct {
	s *Store
}

func (r *MessagesRepo) Send(_ context.Context, senderID int64, receiverEmail, content string) (message.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(receiverEmail))

	var receiverID int64
	for _, u := range s.users {
		if u.Email == email {
			receiverID = u.ID
			break
		}
	}
	if receiverID == 0 {
		return message.Message{}, message.ErrRecipientNotFound
	}

	m := message.Message{
		ID:         s.nextID("messages"),
		Content:    content,
		SenderID:   senderID,
		ReceiverID: receiverID,
		CreatedAt:  s.now().UTC(),
	}
	s.messages[m.ID] = m

	return m, nil
}

func (r *MessagesRepo) ListReceived(_ context.Context, userID int64) ([]message.Received, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]message.Message, 0)
	for _, m := range s.messages {
		if m.ReceiverID == userID {
			msgs = append(msgs, m)
		}
	}

	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].ID > msgs[j].ID
	})

	out := make([]message.Received, 0, len(msgs))
	for _, m := range msgs {
		sender := s.users[m.SenderID]
		out = append(out, message.Received{
			ID:              m.ID,
			Content:         m.Content,
			CreatedAt:       m.CreatedAt,
			SenderEmail:     sender.Email,
			SenderFirstName: sender.FirstName,
			SenderLastName:  sender.LastName,
		})
	}
	return out, nil
}
