package gmail

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMIMEMessage(t *testing.T) {
	raw, err := buildMIMEMessage(SendMailParams{
		To:          "recipient@example.com",
		From:        "sender@example.com",
		Subject:     "Weekly sync",
		HTMLContent: "<h2>Agenda</h2><p>Roadmap review</p>",
	})
	require.NoError(t, err)

	message, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)

	assert.Equal(t, "recipient@example.com", message.Header.Get("To"))
	assert.Equal(t, "sender@example.com", message.Header.Get("From"))
	assert.Equal(t, "Weekly sync", message.Header.Get("Subject"))
	assert.Equal(t, "1.0", message.Header.Get("MIME-Version"))
	assert.Contains(t, message.Header.Get("Content-Type"), "multipart/alternative")
	assert.Contains(t, message.Header.Get("Content-Type"), "boundary=")

	assert.Contains(t, string(raw), "<h2>Agenda</h2>")
	assert.Contains(t, string(raw), `text/html; charset="UTF-8"`)
}
