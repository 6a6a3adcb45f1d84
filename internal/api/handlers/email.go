package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kaikaijiang/Instant-RAG/internal/api"
	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/service"
)

type EmailService interface {
	SaveSettings(ctx context.Context, input service.EmailSettingsInput) error
	GetSettings(ctx context.Context, projectID string) (*domain.EmailSettings, error)
	IngestMail(ctx context.Context, projectID string) ([]domain.EmailSummary, error)
	ListSummaries(ctx context.Context, projectID string) ([]domain.EmailSummary, error)
}

type EmailHandler struct {
	email EmailService
}

func NewEmailHandler(email EmailService) *EmailHandler {
	return &EmailHandler{email: email}
}

type emailSettingsRequest struct {
	ImapServer      string `json:"imap_server"`
	EmailAddress    string `json:"email_address"`
	Password        string `json:"password"`
	SenderFilter    string `json:"sender_filter"`
	SubjectKeywords string `json:"subject_keywords"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
}

type emailSettingsView struct {
	ImapServer      string `json:"imap_server"`
	EmailAddress    string `json:"email_address"`
	SenderFilter    string `json:"sender_filter,omitempty"`
	SubjectKeywords string `json:"subject_keywords,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
}

func (h *EmailHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req emailSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ImapServer == "" || req.EmailAddress == "" || req.Password == "" {
		api.Error(w, http.StatusBadRequest, "imap_server, email_address, and password are required")
		return
	}

	err := h.email.SaveSettings(r.Context(), service.EmailSettingsInput{
		ProjectID:       projectID,
		ImapServer:      req.ImapServer,
		EmailAddress:    req.EmailAddress,
		Password:        req.Password,
		SenderFilter:    req.SenderFilter,
		SubjectKeywords: req.SubjectKeywords,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"saved": projectID})
}

func (h *EmailHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	settings, err := h.email.GetSettings(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, emailSettingsView{
		ImapServer:      settings.ImapServer,
		EmailAddress:    settings.EmailAddress,
		SenderFilter:    settings.SenderFilter,
		SubjectKeywords: settings.SubjectKeywords,
		StartDate:       settings.StartDate,
		EndDate:         settings.EndDate,
	})
}

func (h *EmailHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	summaries, err := h.email.IngestMail(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.EmailSummary{}
	}

	api.Success(w, http.StatusOK, summaries)
}

func (h *EmailHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	summaries, err := h.email.ListSummaries(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.EmailSummary{}
	}

	api.Success(w, http.StatusOK, summaries)
}
