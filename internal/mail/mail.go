package mail

import "context"

// Email is one outbound message.
type Email struct {
	To       []string
	From     string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender sends emails. The production implementation talks to the
// institution's transactional mail provider; tests swap in a recorder.
type Sender interface {
	Send(ctx context.Context, email *Email) (string, error)
}
