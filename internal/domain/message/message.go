package message

import (
	"errors"
	"time"
)

// Message is one-way and visible to its receiver only.
type Message struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Received struct {
	ID              int64     `json:"id"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"createdAt"`
	SenderEmail     string    `json:"senderEmail"`
	SenderFirstName string    `json:"senderFirstName"`
	SenderLastName  string    `json:"senderLastName"`
}

type SendRequest struct {
	To      string `json:"to" binding:"required,trimmed_email"`
	Content string `json:"content" binding:"required,max=5000"`
}

var ErrRecipientNotFound = errors.New("recipient not found")
