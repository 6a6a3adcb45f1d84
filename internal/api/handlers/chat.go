package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kaikaijiang/Instant-RAG/internal/api"
	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/service"
)

const defaultHistoryLimit = 50

type ChatService interface {
	Ask(ctx context.Context, projectID, question string, topK int) (*service.ChatAnswer, error)
	History(ctx context.Context, projectID string, limit int) ([]*domain.ChatMessage, error)
	ClearHistory(ctx context.Context, projectID string) error
}

type ChatHandler struct {
	chat ChatService
}

func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type citationView struct {
	ChunkID      string   `json:"chunk_id"`
	DocName      string   `json:"doc_name"`
	PageNumber   *int     `json:"page_number,omitempty"`
	SourceType   string   `json:"source_type"`
	ImagesBase64 []string `json:"images_base64,omitempty"`
}

type askResponse struct {
	Answer       string         `json:"answer"`
	Citations    []citationView `json:"citations"`
	ImagesBase64 []string       `json:"images_base64"`
	DocNames     []string       `json:"doc_names"`
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.chat.Ask(r.Context(), projectID, req.Question, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := askResponse{
		Answer:       answer.ReplyText,
		Citations:    make([]citationView, 0, len(answer.Citations)),
		ImagesBase64: answer.Images,
		DocNames:     answer.DocNames,
	}
	if resp.ImagesBase64 == nil {
		resp.ImagesBase64 = []string{}
	}
	if resp.DocNames == nil {
		resp.DocNames = []string{}
	}
	for _, c := range answer.Citations {
		view := citationView{
			ChunkID:    c.ChunkID,
			DocName:    c.DocName,
			PageNumber: c.PageNumber,
			SourceType: string(c.SourceType),
		}
		for _, img := range c.Images {
			view.ImagesBase64 = append(view.ImagesBase64, img.Base64)
		}
		resp.Citations = append(resp.Citations, view)
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := h.chat.History(r.Context(), projectID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if messages == nil {
		messages = []*domain.ChatMessage{}
	}

	api.Success(w, http.StatusOK, messages)
}

func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	if err := h.chat.ClearHistory(r.Context(), projectID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"cleared": projectID})
}
