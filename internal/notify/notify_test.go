package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testFrom = mail.Address{Name: "Quiet Hours", Address: "noreply@example.com"}
	testMsg  = Message{
		To:      mail.Address{Name: "Ada Lovelace", Address: "ada@example.com"},
		Subject: "Study Block Starting Soon: Calculus",
		Text:    "Your study session is starting soon!",
		HTML:    "<p>Your study session is starting soon!</p>",
	}
)

func TestConsole_Send(t *testing.T) {
	c := NewConsole(testFrom, slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := c.Send(context.Background(), testMsg)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sent := c.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, testMsg, sent[0])
}

func TestConsole_RejectsInvalidMessage(t *testing.T) {
	c := NewConsole(testFrom, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Send(context.Background(), Message{Subject: "no recipient", Text: "x"})
	assert.True(t, errors.Is(err, ErrNoRecipient))

	_, err = c.Send(context.Background(), Message{To: testMsg.To, Subject: "empty"})
	assert.Error(t, err)
	assert.Empty(t, c.Sent())
}

// sendGridPayload mirrors the parts of the v3 mail/send body the tests check.
type sendGridPayload struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"to"`
		Subject string `json:"subject"`
	} `json:"personalizations"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func TestSendGrid_Send(t *testing.T) {
	var got sendGridPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendGridEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("X-Message-Id", "sg-message-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGrid("sg-key", testFrom)
	s.host = srv.URL

	id, err := s.Send(context.Background(), testMsg)
	require.NoError(t, err)
	assert.Equal(t, "sg-message-1", id)

	assert.Equal(t, "noreply@example.com", got.From.Email)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, testMsg.Subject, got.Personalizations[0].Subject)
	require.Len(t, got.Personalizations[0].To, 1)
	assert.Equal(t, "ada@example.com", got.Personalizations[0].To[0].Email)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "text/plain", got.Content[0].Type)
	assert.Equal(t, "text/html", got.Content[1].Type)
}

func TestSendGrid_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGrid("wrong", testFrom)
	s.host = srv.URL

	_, err := s.Send(context.Background(), testMsg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestResend_RejectsInvalidMessage(t *testing.T) {
	r := NewResend("re_test", testFrom)

	_, err := r.Send(context.Background(), Message{Subject: "nobody", Text: "x"})
	assert.True(t, errors.Is(err, ErrNoRecipient))
}

func newTestResend(t *testing.T, handler http.HandlerFunc) *Resend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := NewResend("re_test", testFrom)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	r.client.BaseURL = base
	return r
}

func TestResend_Send(t *testing.T) {
	var got map[string]any
	r := newTestResend(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/emails", req.URL.Path)
		assert.Equal(t, "Bearer re_test", req.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re-msg-1"}`))
	})

	id, err := r.Send(context.Background(), testMsg)
	require.NoError(t, err)
	assert.Equal(t, "re-msg-1", id)

	assert.Equal(t, testFrom.String(), got["from"])
	assert.Equal(t, []any{testMsg.To.String()}, got["to"])
	assert.Equal(t, testMsg.Subject, got["subject"])
	assert.Equal(t, testMsg.HTML, got["html"])
	assert.Equal(t, testMsg.Text, got["text"])
}

func TestResend_ErrorStatus(t *testing.T) {
	r := newTestResend(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid from field"}`))
	})

	_, err := r.Send(context.Background(), testMsg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ada@example.com")
}
