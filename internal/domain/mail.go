package domain

// MailMessage is a single outbound email with plain-text and HTML bodies.
type MailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
