// SPDX-License-Identifier: GPL-3.0-only

package notifications

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"silently-server/commons"

	"gopkg.in/gomail.v2"
)

//go:embed email_templates/*.html
var templateFS embed.FS

func MockEmailClient(data NotificationData) error {
	commons.Logger.Info("=== MOCK EMAIL NOTIFICATION ===")
	commons.Logger.Infof("To: %s", data.To)
	if data.ToName != nil {
		commons.Logger.Infof("To Name: %s", *data.ToName)
	}
	commons.Logger.Infof("Subject: %s", data.Subject)
	commons.Logger.Infof("Template: %s", data.Template)

	if data.Template != "" {
		htmlBody, err := renderTemplate(data.Template, data.Variables)
		if err != nil {
			commons.Logger.Errorf("Failed to render template: %v", err)
			return fmt.Errorf("failed to render template: %w", err)
		}
		commons.Logger.Debugf("Rendered email:\n%s", htmlBody)
	}

	commons.Logger.Info("=== EMAIL MOCK COMPLETE ===")
	return nil
}

func SMTPClient(data NotificationData) error {
	commons.Logger.Debug("Sending email via SMTP")

	smtpHost := commons.GetEnv("SMTP_HOST")
	if smtpHost == "" {
		return fmt.Errorf("SMTP_HOST environment variable is not set")
	}
	port := commons.GetEnvInt("SMTP_PORT", 587)
	username := commons.GetEnv("SMTP_USERNAME")
	password := commons.GetEnv("SMTP_PASSWORD")

	fromEmail := commons.GetEnv("SMTP_FROM_EMAIL")
	if fromEmail == "" {
		return fmt.Errorf("SMTP_FROM_EMAIL environment variable is not set")
	}
	fromName := commons.GetEnv("SMTP_FROM_NAME", "SilentlyAI")

	if err := validate(data); err != nil {
		return err
	}

	htmlBody, err := renderTemplate(data.Template, data.Variables)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	toName := ""
	if data.ToName != nil {
		toName = *data.ToName
	}

	message := gomail.NewMessage()
	message.SetHeader("From", message.FormatAddress(fromEmail, fromName))
	message.SetHeader("To", message.FormatAddress(data.To, toName))
	message.SetHeader("Subject", data.Subject)
	message.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(smtpHost, port, username, password)
	dialer.TLSConfig = &tls.Config{ServerName: smtpHost}

	if err := dialer.DialAndSend(message); err != nil {
		commons.Logger.Error("Failed to send email via SMTP:", err)
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}

	commons.Logger.Info("Email sent successfully via SMTP")
	return nil
}

func validate(data NotificationData) error {
	if data.To == "" {
		return fmt.Errorf("'to' field is required")
	}
	if data.Subject == "" {
		return fmt.Errorf("'subject' field is required")
	}
	if data.Template == "" {
		return fmt.Errorf("'template' field is required")
	}
	return nil
}

func renderTemplate(templateName string, variables map[string]any) (string, error) {
	templatePath := "email_templates/" + templateName + ".html"

	tmpl, err := template.ParseFS(templateFS, templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}
