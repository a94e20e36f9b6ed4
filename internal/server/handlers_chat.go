package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sagalabs/saga/internal/conversation"
	"github.com/sagalabs/saga/internal/prompts"
)

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.deps.Topics.ListTopics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if topics == nil {
		topics = []conversation.Topic{}
	}
	respondJSON(w, http.StatusOK, topics)
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KnowledgeBases []string `json:"knowledge_bases"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	topic, err := s.deps.Topics.CreateTopic(r.Context(), req.KnowledgeBases)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, topic)
}

func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := s.deps.Topics.GetTopic(r.Context(), chi.URLParam(r, "topicID"))
	if err != nil {
		respondTopicError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, topic)
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Topics.DeleteTopic(r.Context(), chi.URLParam(r, "topicID")); err != nil {
		respondTopicError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSetTopicKBs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KnowledgeBases []string `json:"knowledge_bases"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Topics.SetKnowledgeBases(r.Context(), chi.URLParam(r, "topicID"), req.KnowledgeBases); err != nil {
		respondTopicError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleClearSummary(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Topics.ClearSummary(r.Context(), chi.URLParam(r, "topicID")); err != nil {
		respondTopicError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.deps.Topics.Messages(r.Context(), chi.URLParam(r, "topicID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleTopicStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Topics.TopicStats(r.Context(), chi.URLParam(r, "topicID"))
	if err != nil {
		respondTopicError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleChatREST runs one chat turn over plain HTTP.
func (s *Server) handleChatREST(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.deps.Chat.Chat(r.Context(), chi.URLParam(r, "topicID"), req.Message)
	if err != nil {
		respondTopicError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// CORS is enforced by the HTTP middleware; the local UI connects
	// from file and app origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// chatRequest is one client frame on the chat socket.
type chatRequest struct {
	TopicID string `json:"topic_id"`
	Message string `json:"message"`
}

// chatResponse is one server frame on the chat socket.
type chatResponse struct {
	Type  string              `json:"type"`
	Reply *conversation.Reply `json:"reply,omitempty"`
	Error string              `json:"error,omitempty"`
}

// handleChatWS serves a persistent chat connection. Each client frame is
// one turn; the reply frame carries the answer with its citations.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}
		if req.TopicID == "" || req.Message == "" {
			s.writeWS(conn, chatResponse{Type: "error", Error: "topic_id and message are required"})
			continue
		}

		reply, err := s.deps.Chat.Chat(r.Context(), req.TopicID, req.Message)
		if err != nil {
			s.writeWS(conn, chatResponse{Type: "error", Error: err.Error()})
			continue
		}
		s.writeWS(conn, chatResponse{Type: "reply", Reply: reply})
	}
}

func (s *Server) writeWS(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	system, user := prompts.BuildTranslatePrompt(req.Text)
	translated, err := s.deps.Gateway.Lightweight(r.Context(), system, user, 0)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": translated})
}

func respondTopicError(w http.ResponseWriter, err error) {
	if errors.Is(err, conversation.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
