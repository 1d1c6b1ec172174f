package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/finchat-assistant/internal/data"
	"github.com/PaulBabatuyi/finchat-assistant/internal/transcript"
)

// handleSaveHistory replaces the stored message list of one of the caller's
// chats, creating the chat on first save.
func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatID   string          `json:"chatId"`
		Messages json.RawMessage `json:"messages"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	raw := bytes.TrimSpace(body.Messages)
	chatID := strings.TrimSpace(body.ChatID)
	if chatID == "" || len(raw) == 0 || raw[0] != '[' {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var messages []data.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, _ := identityFromContext(r.Context())
	session, err := s.chats.SaveHistory(r.Context(), id.ID, chatID, messages)
	if err != nil {
		s.log.Error("save history failed", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error saving chat history")
		return
	}

	s.publishHistory(r, id, session)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Chat history saved successfully",
		"chatId":  chatID,
	})
}

// publishHistory notifies the caller's open event streams. Delivery is best
// effort.
func (s *Server) publishHistory(r *http.Request, id *identity, session *data.ChatSession) {
	if !s.hub.Connected(id.ID.Hex()) {
		return
	}
	sum := data.Summarize(session)
	ev := &HistoryEvent{
		Type:            EventHistoryUpdated,
		ChatID:          sum.ChatID,
		Title:           sum.Title,
		LastMessageTime: sum.LastMessageTime,
		MessageCount:    sum.MessageCount,
	}
	if err := s.hub.SendToUser(r.Context(), id.ID.Hex(), ev); err != nil {
		s.log.Debug("history event delivery failed", zap.Error(err))
	}
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	list, err := s.chats.ListHistory(r.Context(), id.ID)
	if err != nil {
		s.log.Error("list history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error fetching chat history")
		return
	}
	if list == nil {
		list = []data.ChatSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDownload serves one of the caller's chats as an attachment in the
// requested format (json by default, md or html).
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "Chat ID is required")
		return
	}
	format, err := transcript.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported format")
		return
	}

	id, _ := identityFromContext(r.Context())
	session, err := s.chats.GetChat(r.Context(), id.ID, chatID)
	if err != nil {
		if errors.Is(err, data.ErrChatNotFound) {
			writeError(w, http.StatusNotFound, "Chat session not found")
			return
		}
		s.log.Error("get chat failed", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error fetching chat messages")
		return
	}

	out, err := transcript.Render(format, session, s.now())
	if err != nil {
		s.log.Error("render transcript failed", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error fetching chat messages")
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}
