package notifications

import (
	"context"
	"fmt"
	"strings"
)

type Email struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

func PasswordResetEmail(to, link string) Email {
	return Email{
		To:      to,
		Subject: "Reset your password",
		Body: "We received a request to reset your password.\n\n" +
			"Open the link below within one hour to choose a new one:\n" + link + "\n\n" +
			"If you did not ask for this, you can ignore this email.\n",
	}
}

type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Message   string
}

func ContactEmail(to string, in ContactInput) Email {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s %s\n", in.FirstName, in.LastName)
	fmt.Fprintf(&b, "Email: %s\n", in.Email)
	fmt.Fprintf(&b, "Phone: %s\n\n", in.Phone)
	b.WriteString(in.Message)
	b.WriteString("\n")

	return Email{
		To:      to,
		ReplyTo: in.Email,
		Subject: "New contact request from " + strings.TrimSpace(in.FirstName+" "+in.LastName),
		Body:    b.String(),
	}
}
