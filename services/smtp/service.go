package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/internal/utils"
)

// OutgoingAttachment is one file to attach to an outbound message
type OutgoingAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// OutgoingEmail is a fully specified outbound message. From is always
// derived from the sending account, never caller-supplied.
type OutgoingEmail struct {
	To          []string
	Cc          []string
	Bcc         []string
	ReplyTo     string
	Subject     string
	BodyText    string
	BodyHTML    string
	InReplyTo   string
	References  string
	Attachments []OutgoingAttachment
}

// Sender delivers outbound mail through an account's SMTP endpoint. When the
// account has no SMTP host configured, delivery falls back to the IMAP host
// with the configured default submission port and STARTTLS.
type Sender struct {
	cfg *config.SMTPConfig
	log logger.Logger
}

func NewSender(cfg *config.SMTPConfig, log logger.Logger) *Sender {
	return &Sender{
		cfg: cfg,
		log: log,
	}
}

// Send validates, assembles and delivers one message. It returns the
// generated Message-ID on success.
func (s *Sender) Send(ctx context.Context, account *models.Account, email *OutgoingEmail) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Sender.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, fmt.Sprintf("%d", account.ID))

	if err := s.validateEmail(ctx, account, email); err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	from := fromAddress(account)
	messageID := utils.GenerateMessageID(domainOf(from), email.Subject)

	buffer, err := s.prepareMessage(ctx, from, messageID, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	recipients := allRecipients(email)
	if err := s.sendToServer(ctx, account, from, recipients, buffer); err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	s.log.Infof("[account %d] sent %s to %d recipients", account.ID, messageID, len(recipients))
	return messageID, nil
}

// TestConnection verifies the SMTP endpoint accepts the account's
// credentials, without sending anything
func (s *Sender) TestConnection(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Sender.TestConnection")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	host, port, useSSL, useTLS := s.endpoint(account)
	addr := fmt.Sprintf("%s:%d", host, port)
	auth := smtp.PlainAuth("", account.Username, account.Password, host)

	var client *smtp.Client
	var err error

	if useSSL {
		conn, dialErr := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
		if dialErr != nil {
			err = errors.Wrap(dialErr, "failed to connect to SMTP server")
			tracing.TraceErr(span, err)
			return err
		}
		client, err = smtp.NewClient(conn, host)
	} else {
		client, err = smtp.Dial(addr)
	}
	if err != nil {
		err = errors.Wrap(err, "failed to create SMTP client")
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	if !useSSL && useTLS {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			err = errors.Wrap(err, "failed to start TLS")
			tracing.TraceErr(span, err)
			return err
		}
	}

	if err := client.Auth(auth); err != nil {
		err = errors.Wrap(err, "SMTP authentication failed")
		tracing.TraceErr(span, err)
		return err
	}

	return client.Quit()
}

func (s *Sender) validateEmail(ctx context.Context, account *models.Account, email *OutgoingEmail) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "Sender.validateEmail")
	defer span.Finish()

	if email == nil {
		return errors.New("email cannot be nil")
	}
	if len(email.To) == 0 {
		return errors.New("at least one recipient is required")
	}
	if email.Subject == "" {
		return errors.New("email must have a subject")
	}
	if email.BodyText == "" && email.BodyHTML == "" {
		return errors.New("email must have either text or HTML content")
	}

	from := fromAddress(account)
	if validation := mailvalidate.ValidateEmailSyntax(from); !validation.IsValid {
		return errors.Errorf("account %d has no valid sending address", account.ID)
	}

	for _, groups := range [][]string{email.To, email.Cc, email.Bcc} {
		for _, recipient := range groups {
			if validation := mailvalidate.ValidateEmailSyntax(recipient); !validation.IsValid {
				return errors.Errorf("invalid recipient address %q", recipient)
			}
		}
	}

	if email.ReplyTo != "" {
		if validation := mailvalidate.ValidateEmailSyntax(email.ReplyTo); !validation.IsValid {
			return errors.Errorf("invalid reply-to address %q", email.ReplyTo)
		}
	}

	return nil
}

// prepareMessage assembles the full RFC 822 octets. HTML bodies produce a
// multipart/alternative inside the mixed envelope so text-only readers still
// see the plain part.
func (s *Sender) prepareMessage(ctx context.Context, from, messageID string, email *OutgoingEmail) (*bytes.Buffer, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Sender.prepareMessage")
	defer span.Finish()

	buffer := bytes.NewBuffer(nil)

	headers := map[string]string{
		"From":         from,
		"To":           joinAddresses(email.To),
		"Subject":      email.Subject,
		"Date":         time.Now().UTC().Format(time.RFC1123Z),
		"Message-ID":   messageID,
		"MIME-Version": "1.0",
	}
	if len(email.Cc) > 0 {
		headers["Cc"] = joinAddresses(email.Cc)
	}
	// Bcc recipients go on the envelope only, never into the headers
	if email.ReplyTo != "" {
		headers["Reply-To"] = email.ReplyTo
	}
	if email.InReplyTo != "" {
		headers["In-Reply-To"] = email.InReplyTo
	}
	if email.References != "" {
		headers["References"] = email.References
	}

	if email.BodyHTML == "" && len(email.Attachments) == 0 {
		headers["Content-Type"] = "text/plain; charset=UTF-8"
		writeHeaders(headers, buffer)
		buffer.WriteString(email.BodyText)
		return buffer, nil
	}

	writer := multipart.NewWriter(buffer)
	headers["Content-Type"] = "multipart/mixed; boundary=" + writer.Boundary()
	writeHeaders(headers, buffer)

	if err := s.addBodyParts(ctx, writer, email); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	for _, attachment := range email.Attachments {
		if err := s.addAttachment(ctx, writer, attachment); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return buffer, nil
}

func (s *Sender) addBodyParts(ctx context.Context, writer *multipart.Writer, email *OutgoingEmail) error {
	if email.BodyHTML == "" {
		return s.addTextPart(writer, "text/plain", email.BodyText)
	}

	altBuffer := bytes.NewBuffer(nil)
	alt := multipart.NewWriter(altBuffer)

	if email.BodyText != "" {
		if err := addPartTo(alt, "text/plain", email.BodyText); err != nil {
			return err
		}
	}
	if err := addPartTo(alt, "text/html", email.BodyHTML); err != nil {
		return err
	}
	if err := alt.Close(); err != nil {
		return err
	}

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create alternative part")
	}
	_, err = part.Write(altBuffer.Bytes())
	return err
}

func (s *Sender) addTextPart(writer *multipart.Writer, contentType, content string) error {
	return addPartTo(writer, contentType, content)
}

func addPartTo(writer *multipart.Writer, contentType, content string) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType + "; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create %s part", contentType)
	}
	_, err = part.Write([]byte(content))
	return err
}

func (s *Sender) addAttachment(ctx context.Context, writer *multipart.Writer, attachment OutgoingAttachment) error {
	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf("%s; name=%q", contentType, attachment.Filename)},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachment.Filename)},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create attachment part")
	}

	encoded := base64.StdEncoding.EncodeToString(attachment.Content)
	for len(encoded) > 0 {
		line := encoded
		if len(line) > 76 {
			line = line[:76]
		}
		if _, err := part.Write([]byte(line + "\r\n")); err != nil {
			return errors.Wrap(err, "failed to write attachment content")
		}
		encoded = encoded[len(line):]
	}

	return nil
}

// sendToServer delivers the prepared octets per the account's security mode
func (s *Sender) sendToServer(ctx context.Context, account *models.Account, from string, recipients []string, buffer *bytes.Buffer) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Sender.sendToServer")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	host, port, useSSL, useTLS := s.endpoint(account)
	addr := fmt.Sprintf("%s:%d", host, port)
	auth := smtp.PlainAuth("", account.Username, account.Password, host)

	span.LogKV("smtp_server", host)
	span.LogKV("smtp_port", port)

	if useSSL {
		return s.sendWithExplicitTLS(ctx, addr, host, auth, from, recipients, buffer)
	}
	if useTLS {
		return s.sendWithSTARTTLS(ctx, addr, host, auth, from, recipients, buffer)
	}

	if err := smtp.SendMail(addr, auth, from, recipients, buffer.Bytes()); err != nil {
		err = errors.Wrap(err, "failed to send email")
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *Sender) sendWithSTARTTLS(ctx context.Context, addr, host string, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "Sender.sendWithSTARTTLS")
	defer span.Finish()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		err = errors.Wrap(err, "failed to connect to SMTP server")
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		err = errors.Wrap(err, "failed to create SMTP client")
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		err = errors.Wrap(err, "failed to start TLS")
		tracing.TraceErr(span, err)
		return err
	}

	return s.transmit(span, client, auth, from, recipients, buffer)
}

func (s *Sender) sendWithExplicitTLS(ctx context.Context, addr, host string, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "Sender.sendWithExplicitTLS")
	defer span.Finish()

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		err = errors.Wrap(err, "failed to connect to SMTP server")
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		err = errors.Wrap(err, "failed to create SMTP client")
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	return s.transmit(span, client, auth, from, recipients, buffer)
}

func (s *Sender) transmit(span opentracing.Span, client *smtp.Client, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	if err := client.Auth(auth); err != nil {
		err = errors.Wrap(err, "SMTP authentication failed")
		tracing.TraceErr(span, err)
		return err
	}

	if err := client.Mail(from); err != nil {
		err = errors.Wrap(err, "SMTP MAIL command failed")
		tracing.TraceErr(span, err)
		return err
	}

	for _, recipient := range recipients {
		if err := client.Rcpt(recipient); err != nil {
			err = errors.Wrapf(err, "SMTP RCPT command failed for %s", recipient)
			tracing.TraceErr(span, err)
			return err
		}
	}

	dataWriter, err := client.Data()
	if err != nil {
		err = errors.Wrap(err, "SMTP DATA command failed")
		tracing.TraceErr(span, err)
		return err
	}

	if _, err = dataWriter.Write(buffer.Bytes()); err != nil {
		err = errors.Wrap(err, "failed to write email data")
		tracing.TraceErr(span, err)
		return err
	}

	if err = dataWriter.Close(); err != nil {
		err = errors.Wrap(err, "failed to close data writer")
		tracing.TraceErr(span, err)
		return err
	}

	return client.Quit()
}

// endpoint picks the SMTP host, port and security mode for an account
func (s *Sender) endpoint(account *models.Account) (host string, port int, useSSL, useTLS bool) {
	if account.SMTPHost != "" {
		port = account.SMTPPort
		if port == 0 {
			port = s.cfg.DefaultPort
		}
		return account.SMTPHost, port, account.SMTPUseSSL, account.SMTPUseTLS
	}

	host = s.cfg.DefaultHost
	if host == "" {
		host = account.IMAPHost
	}
	return host, s.cfg.DefaultPort, false, true
}

// fromAddress prefers the account's display name when it is itself an
// address, otherwise the login username
func fromAddress(account *models.Account) string {
	if utils.LooksLikeAddress(account.AccountName) {
		return account.AccountName
	}
	return account.Username
}

func domainOf(address string) string {
	validation := mailvalidate.ValidateEmailSyntax(address)
	if validation.IsValid {
		return validation.Domain
	}
	return "localhost"
}

func allRecipients(email *OutgoingEmail) []string {
	seen := make(map[string]bool)
	var recipients []string
	for _, groups := range [][]string{email.To, email.Cc, email.Bcc} {
		for _, recipient := range groups {
			if recipient == "" || seen[recipient] {
				continue
			}
			seen[recipient] = true
			recipients = append(recipients, recipient)
		}
	}
	return recipients
}

func joinAddresses(addresses []string) string {
	return strings.Join(addresses, ", ")
}

// writeHeaders writes the header block deterministically so the output is
// stable across runs
func writeHeaders(headers map[string]string, buffer *bytes.Buffer) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		buffer.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	buffer.WriteString("\r\n")
}
