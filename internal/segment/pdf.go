package segment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

// pdfRenderDPI renders pages at 2x the 72dpi PDF baseline so screenshot
// citations stay legible.
const pdfRenderDPI = 144

// segmentPDF extracts per-page text chunks and one screenshot piece per
// page. The screenshot piece carries the rendered page image and a
// placeholder label; it is never embedded.
func (s *Segmenter) segmentPDF(raw []byte, name string) ([]Piece, int, error) {
	doc, err := fitz.NewFromMemory(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open pdf %s: %w", name, err)
	}
	defer doc.Close()

	totalPages := doc.NumPage()
	var pieces []Piece

	for p := 0; p < totalPages; p++ {
		pageNum := p + 1

		text, err := doc.Text(p)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to extract text from %s page %d: %w", name, pageNum, err)
		}

		chunks := s.splitter.Split(CleanText(text))
		for i, chunk := range chunks {
			page := pageNum
			pieces = append(pieces, Piece{
				ChunkID:    fmt.Sprintf("%s_p%d_c%d", name, pageNum, i+1),
				Text:       chunk,
				PageNumber: &page,
				SourceType: domain.SourceTypePDF,
				DocName:    name,
			})
		}

		screenshot, err := renderPageImage(doc, p)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to render %s page %d: %w", name, pageNum, err)
		}

		page := pageNum
		pieces = append(pieces, Piece{
			ChunkID:    fmt.Sprintf("%s_p%d_screenshot", name, pageNum),
			Text:       fmt.Sprintf("[Page %d screenshot]", pageNum),
			PageNumber: &page,
			Images: []domain.ChunkImage{{
				ID:       fmt.Sprintf("%d_screenshot", p),
				Base64:   screenshot,
				MimeType: "png",
			}},
			SourceType:   domain.SourceTypePDF,
			DocName:      name,
			IsScreenshot: true,
		})
	}

	return pieces, totalPages, nil
}

func renderPageImage(doc *fitz.Document, page int) (string, error) {
	img, err := doc.ImageDPI(page, pdfRenderDPI)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return "data:image/png;base64," + encoded, nil
}
