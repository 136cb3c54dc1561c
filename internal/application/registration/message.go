package registration

import (
	"fmt"
	"html"

	"github.com/expo-registration-api/internal/domain"
)

func confirmationMessage(reg *domain.Registration) domain.MailMessage {
	label := reg.Type.Label()
	return domain.MailMessage{
		To:      reg.Email,
		Subject: fmt.Sprintf("Your %s registration is confirmed", label),
		Text: fmt.Sprintf("Hi %s,\n\nThanks for registering as a %s. Your ticket code is %s.\nPlease keep it handy for badge pickup.\n",
			reg.Name, label, reg.TicketCode),
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>Thanks for registering as a %s. Your ticket code is <strong>%s</strong>.</p><p>Please keep it handy for badge pickup.</p>",
			html.EscapeString(reg.Name), label, reg.TicketCode),
	}
}
