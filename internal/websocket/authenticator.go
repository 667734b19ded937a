package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"collabboard/internal/auth"
	"collabboard/internal/errs"

	"github.com/gorilla/websocket"
)

// CloseAuthFailed: close code sent when the handshake credential is rejected
const CloseAuthFailed = 4001

// Authenticator: resolves the credential of a new connection
type Authenticator struct {
	verifier auth.Authenticator
	timeout  time.Duration
}

func NewAuthenticator(verifier auth.Authenticator, timeout time.Duration) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		timeout:  timeout,
	}
}

// credentialFromRequest: ?token= or an Authorization header, empty when neither is set
func credentialFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("Authorization"))
}

// readCredential: waits up to timeout for {"type":"authenticate","token":...}
func (a *Authenticator) readCredential(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(a.timeout))
	defer conn.SetReadDeadline(time.Time{}) // Clear timeout

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("%w: no authenticate message: %v", errs.ErrUnauthenticated, err)
	}

	var authMsg struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(msg, &authMsg); err != nil {
		return "", fmt.Errorf("%w: invalid auth message format: %v", errs.ErrUnauthenticated, err)
	}
	if authMsg.Type != "authenticate" {
		return "", fmt.Errorf("%w: expected authenticate message, got %q", errs.ErrUnauthenticated, authMsg.Type)
	}
	return authMsg.Token, nil
}

// Authenticate: verifies the request credential, falling back to the first message
func (a *Authenticator) Authenticate(r *http.Request, conn *websocket.Conn) (auth.Identity, error) {
	credential := credentialFromRequest(r)
	if credential == "" {
		var err error
		if credential, err = a.readCredential(conn); err != nil {
			return auth.Identity{}, err
		}
	}
	return a.verifier.Authenticate(credential)
}

// reject: closes conn with the auth failure reason, never retried
func reject(conn *websocket.Conn, err error) {
	msg := websocket.FormatCloseMessage(CloseAuthFailed, auth.CloseReason(err))
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}
