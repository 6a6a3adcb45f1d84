package segment

import (
	"encoding/base64"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

// noTextPlaceholder is stored as the chunk text when OCR produces nothing,
// so the image chunk still has an embeddable anchor.
const noTextPlaceholder = "[Image with no extractable text]"

// segmentImage turns a standalone image into one or more chunks carrying the
// image payload. OCR text, when available, is cleaned and chunked; OCR
// failure is not fatal.
func (s *Segmenter) segmentImage(raw []byte, name string) ([]Piece, int, error) {
	ext := strings.ToLower(filepath.Ext(name))
	mimeType := "image/unknown"
	if isImageExt(ext) {
		mimeType = "image/" + strings.TrimPrefix(ext, ".")
	}

	encoded := base64.StdEncoding.EncodeToString(raw)
	payload := domain.ChunkImage{
		ID:       "0",
		Base64:   fmt.Sprintf("data:%s;base64,%s", mimeType, encoded),
		MimeType: mimeType,
	}

	chunks := []string{noTextPlaceholder}
	if s.ocr != nil {
		text, err := s.ocr.Text(raw)
		if err != nil {
			log.Printf("segment: OCR failed for %s: %v", name, err)
		} else if strings.TrimSpace(text) != "" {
			if extracted := s.splitter.Split(CleanText(text)); len(extracted) > 0 {
				chunks = extracted
			}
		}
	}

	pieces := make([]Piece, 0, len(chunks))
	for i, chunk := range chunks {
		pieces = append(pieces, Piece{
			ChunkID:    fmt.Sprintf("%s_c%d", name, i+1),
			Text:       chunk,
			Images:     []domain.ChunkImage{payload},
			SourceType: domain.SourceTypeImage,
			DocName:    name,
		})
	}
	return pieces, 1, nil
}

// TesseractOCR extracts text with a per-call tesseract client; gosseract
// clients are not safe to share across goroutines.
type TesseractOCR struct{}

func (TesseractOCR) Text(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to load image for OCR: %w", err)
	}
	return client.Text()
}
