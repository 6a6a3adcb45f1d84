package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kaikaijiang/Instant-RAG/internal/api"
	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/service"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// parts spill to temp files.
const maxUploadMemory = 32 << 20

type IngestService interface {
	UploadFiles(ctx context.Context, projectID string, files []service.UploadFile) (*service.BatchReport, error)
	IngestWebPage(ctx context.Context, projectID, rawURL string) (*domain.Document, error)
	ListDocuments(ctx context.Context, projectID string) ([]*domain.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

type DocumentHandler struct {
	ingest IngestService
}

func NewDocumentHandler(ingest IngestService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest}
}

type documentView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SourceType string `json:"source_type"`
	Status     string `json:"status"`
	PageCount  int    `json:"page_count"`
}

type uploadResponse struct {
	Processed []documentView       `json:"processed"`
	Failed    []service.FailedFile `json:"failed"`
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		api.Error(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, header := range headers {
		part, err := header.Open()
		if err != nil {
			api.Error(w, http.StatusBadRequest, "unreadable file part: "+header.Filename)
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			api.Error(w, http.StatusBadRequest, "unreadable file part: "+header.Filename)
			return
		}
		files = append(files, service.UploadFile{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	report, err := h.ingest.UploadFiles(r.Context(), projectID, files)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := uploadResponse{Failed: report.Failed}
	if resp.Failed == nil {
		resp.Failed = []service.FailedFile{}
	}
	for _, doc := range report.Processed {
		resp.Processed = append(resp.Processed, toDocumentView(doc))
	}

	// Per-file failures are data, not an error status. An all-failed batch
	// still succeeds with an empty processed list.
	api.Success(w, http.StatusOK, resp)
}

type ingestWebRequest struct {
	URL string `json:"url"`
}

func (h *DocumentHandler) IngestWeb(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req ingestWebRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	doc, err := h.ingest.IngestWebPage(r.Context(), projectID, req.URL)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, toDocumentView(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	docs, err := h.ingest.ListDocuments(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, toDocumentView(doc))
	}
	api.Success(w, http.StatusOK, views)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	if err := h.ingest.DeleteDocument(r.Context(), docID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"deleted": docID})
}

func toDocumentView(doc *domain.Document) documentView {
	return documentView{
		ID:         doc.ID,
		Name:       doc.Name,
		SourceType: string(doc.SourceType),
		Status:     string(doc.Status),
		PageCount:  doc.PageCount,
	}
}
