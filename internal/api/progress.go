package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/exercise-submitter/internal/submission"
)

// ProgressMessage is one frame of the submission progress stream
type ProgressMessage struct {
	Type    string           `json:"type"`
	State   submission.State `json:"state,omitempty"`
	Data    *SubmitResponse  `json:"data,omitempty"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

// handleSubmissionStream runs one submission over a websocket. The client
// sends a SubmitRequest, receives a "state" frame per pipeline step and
// finally a "result" or "error" frame.
func (s *Server) handleSubmissionStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	creds, _ := CredentialsFromContext(r.Context())
	slog.Info("progress websocket connected", "user", creds.Username)

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var req SubmitRequest
	if err := conn.ReadJSON(&req); err != nil {
		slog.Debug("failed to read submit request", "error", err)
		s.sendProgressError(conn, "invalid_request", "expected a submit request")
		return
	}
	conn.SetReadDeadline(time.Time{})

	// The pipeline notifies on this goroutine, so frames are never written concurrently
	observer := func(state submission.State) {
		s.sendProgressMessage(conn, ProgressMessage{Type: "state", State: state})
	}

	resp, reqErr := s.runSubmission(r, creds, req, observer)
	if reqErr != nil {
		s.sendProgressError(conn, reqErr.code, reqErr.message)
	} else {
		s.sendProgressMessage(conn, ProgressMessage{Type: "result", Data: resp})
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (s *Server) sendProgressMessage(conn *websocket.Conn, msg ProgressMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal progress message", "error", err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send progress message", "error", err)
		return err
	}
	return nil
}

func (s *Server) sendProgressError(conn *websocket.Conn, code, message string) {
	s.sendProgressMessage(conn, ProgressMessage{
		Type:    "error",
		Code:    code,
		Message: message,
	})
}
