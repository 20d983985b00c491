package model

import "context"

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages to a single recipient.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
