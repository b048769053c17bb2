package services

import (
	"crypto/tls"
	"fmt"
	"html"

	"github.com/sirupsen/logrus"
	"github.com/sustainareview/sustainareview-api/internal/config"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gopkg.in/gomail.v2"
)

// Mailer sends the transactional emails of the review site.
type Mailer interface {
	SendPasswordResetEmail(email, resetToken, baseURL string) error
	SendModerationEmail(email, reviewTitle, status, note string) error
}

type EmailService struct {
	config *config.Config
}

func NewEmailService(config *config.Config) *EmailService {
	return &EmailService{config: config}
}

// Enabled reports whether SMTP is configured.
func (s *EmailService) Enabled() bool {
	return s.config.SMTPHost != "" && s.config.SMTPUsername != ""
}

// SendEmail only logs the message when SMTP is not configured.
func (s *EmailService) SendEmail(to, subject, body string) error {
	if !s.Enabled() {
		logger.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured, email not sent")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	d.TLSConfig = &tls.Config{ServerName: s.config.SMTPHost}

	return d.DialAndSend(m)
}

func (s *EmailService) SendPasswordResetEmail(email, resetToken, baseURL string) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", baseURL, resetToken)

	subject := "Reset your SustainaReview password"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #2e7d32; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .button { display: inline-block; padding: 12px 24px; background-color: #2e7d32; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Password Reset Request</h1>
        </div>
        <div class="content">
            <p>We received a request to reset the password of the SustainaReview account <strong>%s</strong>.</p>
            <p style="text-align: center;">
                <a href="%s" class="button">Reset Password</a>
            </p>
            <p>Or copy and paste this link in your browser:</p>
            <p style="word-break: break-all;">%s</p>
            <p>The link expires in 1 hour and can be used once. If you did not ask for a reset, ignore this email.</p>
        </div>
        <div class="footer">
            <p>This is an automated message, please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>`, html.EscapeString(email), resetLink, resetLink)

	return s.SendEmail(email, subject, body)
}

func (s *EmailService) SendModerationEmail(email, reviewTitle, status, note string) error {
	subject := fmt.Sprintf("Your review was %s", status)
	body := fmt.Sprintf(`
		<h2>Review %s</h2>
		<p>Your review <strong>%s</strong> has been %s by our moderators.</p>
		<p>%s</p>
		<p>Thanks for helping others shop sustainably,<br>The SustainaReview Team</p>
	`, status, html.EscapeString(reviewTitle), status, html.EscapeString(note))

	return s.SendEmail(email, subject, body)
}
