package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type    string `json:"type"` // "ask"
	Content string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type     string `json:"type"` // "answer" or "error"
	Content  string `json:"content"`
	Model    string `json:"model,omitempty"`
	Sources  int    `json:"sources,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Websocket read failed: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendChatError(conn, "invalid message format")
			continue
		}
		if req.Content == "" {
			s.sendChatError(conn, "content is required")
			continue
		}

		switch req.Type {
		case "ask", "":
			s.handleAskMessage(conn, r, req)
		default:
			s.sendChatError(conn, "unknown message type: "+req.Type)
		}
	}
}

func (s *Server) handleAskMessage(conn *websocket.Conn, r *http.Request, req chatRequest) {
	if s.providers == nil {
		s.sendChatError(conn, "no answer provider configured")
		return
	}

	ans, err := s.answerQuestion(r.Context(), r, req.Content, nil)
	if err != nil {
		s.sendChatError(conn, "question failed: "+err.Error())
		return
	}

	s.sendChatResponse(conn, chatResponse{
		Type:     "answer",
		Content:  ans.Text,
		Model:    ans.Model,
		Sources:  ans.Sources,
		Degraded: ans.Degraded,
	})
}

func (s *Server) sendChatResponse(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("Websocket write failed: %v", err)
	}
}

func (s *Server) sendChatError(conn *websocket.Conn, message string) {
	s.sendChatResponse(conn, chatResponse{Type: "error", Content: message})
}
