package otp

import (
	"fmt"

	"github.com/expo-registration-api/internal/domain"
)

func otpMessage(email string, rt domain.RegistrationType, code string) domain.MailMessage {
	minutes := int(CodeTTL.Minutes())
	return domain.MailMessage{
		To:      email,
		Subject: fmt.Sprintf("Your %s registration code", rt.Label()),
		Text: fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minutes. If you did not request it, you can ignore this email.\n",
			code, minutes),
		HTML: fmt.Sprintf(`<p>Your verification code is</p><p style="font-size:28px;letter-spacing:6px;font-weight:bold">%s</p>`+
			`<p>It expires in %d minutes. If you did not request it, you can ignore this email.</p>`, code, minutes),
	}
}
