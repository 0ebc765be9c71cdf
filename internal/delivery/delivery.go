// Package delivery emails rendered bulletins over SMTP with STARTTLS.
// Every precondition is validated locally before a connection is opened,
// and credentials never appear in log output.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"newsreel/internal/config"
	"newsreel/internal/logging"
	"newsreel/internal/services"
)

const bytesPerMiB = 1 << 20

// Mailer sends bulletin attachments to a configured recipient.
type Mailer struct {
	cfg    *config.Config
	logger *slog.Logger

	// transport is swapped out in tests; it defaults to a real SMTP dial.
	transport func(ctx context.Context, msg *mail.Msg) error
}

// NewMailer builds a mailer from the email configuration section.
func NewMailer(cfg *config.Config, logger *slog.Logger) *Mailer {
	m := &Mailer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "delivery"),
	}
	m.transport = m.dialAndSend
	return m
}

// Configured reports whether the mailer has enough settings to attempt a send.
func (m *Mailer) Configured() bool {
	return strings.TrimSpace(m.cfg.Email.SMTPHost) != "" &&
		strings.TrimSpace(m.cfg.Email.Username) != "" &&
		strings.TrimSpace(m.cfg.SMTPPassword()) != ""
}

// Send emails the bulletin at path as an attachment. An empty recipient
// falls back to the configured default. All rejections happen before any
// network traffic and map to services.ErrDeliveryRejected.
func (m *Mailer) Send(ctx context.Context, path, profileName, recipient string) error {
	if !m.Configured() {
		return fmt.Errorf("%w: smtp host, username, and password must be configured", services.ErrDeliveryRejected)
	}

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		recipient = strings.TrimSpace(m.cfg.Email.DefaultRecipient)
	}
	if err := validateAddress(recipient); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: bulletin not readable: %v", services.ErrDeliveryRejected, err)
	}
	maxBytes := int64(m.cfg.Email.MaxAttachmentMiB) * bytesPerMiB
	if maxBytes > 0 && info.Size() > maxBytes {
		return fmt.Errorf("%w: bulletin is %.1f MiB, limit is %d MiB",
			services.ErrDeliveryRejected, float64(info.Size())/bytesPerMiB, m.cfg.Email.MaxAttachmentMiB)
	}

	msg, err := m.buildMessage(path, profileName, recipient)
	if err != nil {
		return err
	}

	if err := m.transport(ctx, msg); err != nil {
		return fmt.Errorf("send bulletin email: %w", err)
	}
	m.logger.Info("bulletin emailed",
		logging.String("recipient", recipient),
		logging.String("profile", profileName),
		logging.Int64("bytes", info.Size()),
		logging.String(logging.FieldEventType, "bulletin_emailed"),
	)
	return nil
}

func (m *Mailer) buildMessage(path, profileName, recipient string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	sender := strings.TrimSpace(m.cfg.Email.Username)
	senderName := strings.TrimSpace(m.cfg.Email.SenderName)
	if senderName != "" {
		if err := msg.FromFormat(senderName, sender); err != nil {
			return nil, fmt.Errorf("%w: invalid sender: %v", services.ErrDeliveryRejected, err)
		}
	} else if err := msg.From(sender); err != nil {
		return nil, fmt.Errorf("%w: invalid sender: %v", services.ErrDeliveryRejected, err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("%w: invalid recipient: %v", services.ErrDeliveryRejected, err)
	}

	now := time.Now()
	msg.Subject(fmt.Sprintf("News bulletin (%s) %s", profileName, now.Format("2006-01-02 15:04")))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Your combined news bulletin for profile %q generated at %s is attached.\n",
		profileName, now.Format(time.RFC1123)))
	msg.AttachFile(path)
	return msg, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Email.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Email.Username),
		mail.WithPassword(m.cfg.SMTPPassword()),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if m.cfg.Email.TimeoutSeconds > 0 {
		opts = append(opts, mail.WithTimeout(time.Duration(m.cfg.Email.TimeoutSeconds)*time.Second))
	}
	client, err := mail.NewClient(m.cfg.Email.SMTPHost, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// RFC 5321 caps the full address at 254 octets.
const maxAddressLength = 254

// validateAddress rejects malformed or header-injecting addresses without
// contacting any server. net/mail accepts dotless domains like "localhost",
// so the domain part additionally needs a dot with a multi-letter TLD.
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: no recipient configured", services.ErrDeliveryRejected)
	}
	if len(address) > maxAddressLength {
		return fmt.Errorf("%w: recipient exceeds %d characters", services.ErrDeliveryRejected, maxAddressLength)
	}
	if strings.ContainsAny(address, "\r\n") {
		return fmt.Errorf("%w: recipient contains line breaks", services.ErrDeliveryRejected)
	}
	parsed, err := netmail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("%w: invalid recipient address: %v", services.ErrDeliveryRejected, err)
	}
	if parsed.Address != address {
		return fmt.Errorf("%w: recipient must be a bare address", services.ErrDeliveryRejected)
	}
	domain := address[strings.LastIndex(address, "@")+1:]
	if !validDomain(domain) {
		return fmt.Errorf("%w: recipient domain %q must end in a dot-separated TLD", services.ErrDeliveryRejected, domain)
	}
	return nil
}

func validDomain(domain string) bool {
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	tld := domain[dot+1:]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
