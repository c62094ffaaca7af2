package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/taskline/taskline/internal/domain"

	"github.com/rs/zerolog/log"
	gmailapi "google.golang.org/api/gmail/v1"
)

type GmailIntegration struct {
	clientFactory domain.ServiceClientFactory
}

type GmailIntegrationDependencies struct {
	ClientFactory domain.ServiceClientFactory
}

func NewGmailIntegration(deps GmailIntegrationDependencies) *GmailIntegration {
	return &GmailIntegration{
		clientFactory: deps.ClientFactory,
	}
}

type SendMailParams struct {
	UserID  string
	To      string
	From    string
	Subject string
	// HTMLContent is the message body; it is sent as a text/html alternative.
	HTMLContent string
}

// SendMail sends one message through the user's Gmail account and returns the
// provider message id.
func (g *GmailIntegration) SendMail(ctx context.Context, params SendMailParams) (string, error) {
	service, err := g.clientFactory.GetMailService(ctx, params.UserID)
	if err != nil {
		return "", err
	}

	raw, err := buildMIMEMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to build mail message: %w", err)
	}

	message := &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	sent, err := service.Users.Messages.Send("me", message).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send mail: %w", err)
	}

	log.Info().
		Str("user_id", params.UserID).
		Str("message_id", sent.Id).
		Msg("Mail sent")

	return sent.Id, nil
}

// buildMIMEMessage assembles a multipart/alternative message with an HTML
// part, the shape Gmail expects in the raw field before base64url encoding.
func buildMIMEMessage(params SendMailParams) ([]byte, error) {
	var builder strings.Builder
	var body strings.Builder

	writer := multipart.NewWriter(&body)

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": []string{`text/html; charset="UTF-8"`},
	})
	if err != nil {
		return nil, err
	}

	if _, err := part.Write([]byte(params.HTMLContent)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	fmt.Fprintf(&builder, "To: %s\r\n", params.To)
	fmt.Fprintf(&builder, "From: %s\r\n", params.From)
	fmt.Fprintf(&builder, "Subject: %s\r\n", params.Subject)
	fmt.Fprintf(&builder, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&builder, "Content-Type: multipart/alternative; boundary=%q\r\n", writer.Boundary())
	builder.WriteString("\r\n")
	builder.WriteString(body.String())

	return []byte(builder.String()), nil
}
