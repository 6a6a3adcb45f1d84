// Package segment decomposes raw source bytes into ordered text chunks plus
// page-level image chunks ready for embedding and storage.
package segment

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

// Piece is one segmented chunk before ownership fields are attached. Pieces
// with IsScreenshot set carry image payloads and never receive an embedding.
type Piece struct {
	ChunkID      string
	Text         string
	PageNumber   *int
	Images       []domain.ChunkImage
	SourceType   domain.SourceType
	DocName      string
	IsScreenshot bool
}

// OCRClient extracts text from image bytes. Implementations are expected to
// be safe for concurrent use.
type OCRClient interface {
	Text(image []byte) (string, error)
}

// Segmenter turns raw source bytes into text and image pieces.
type Segmenter struct {
	splitter *RecursiveSplitter
	ocr      OCRClient
}

// New creates a Segmenter with the default 1000/150 character policy. ocr
// may be nil, in which case image chunks fall back to the placeholder text.
func New(ocr OCRClient) *Segmenter {
	return &Segmenter{
		splitter: NewRecursiveSplitter(DefaultChunkSize, DefaultOverlap),
		ocr:      ocr,
	}
}

// Segment processes a file and returns its pieces and page count. An
// unsupported type is not an error: it yields zero pieces.
func (s *Segmenter) Segment(raw []byte, name, declaredMime string) ([]Piece, int, error) {
	sourceType := DetectSourceType(name, declaredMime)

	switch sourceType {
	case domain.SourceTypePDF:
		return s.segmentPDF(raw, name)
	case domain.SourceTypeMarkdown, domain.SourceTypeText:
		return s.segmentPlain(raw, name, sourceType), 1, nil
	case domain.SourceTypeDocx:
		return s.segmentDocx(raw, name)
	case domain.SourceTypeImage:
		return s.segmentImage(raw, name)
	default:
		log.Printf("segment: unsupported file type %q for %s, skipping", declaredMime, name)
		return nil, 0, nil
	}
}

// DetectSourceType dispatches on file extension first, then on the declared
// MIME type, falling back to unknown.
func DetectSourceType(name, declaredMime string) domain.SourceType {
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case ext == ".pdf" || declaredMime == "application/pdf":
		return domain.SourceTypePDF
	case ext == ".md" || ext == ".markdown" || declaredMime == "text/markdown":
		return domain.SourceTypeMarkdown
	case ext == ".txt" || declaredMime == "text/plain":
		return domain.SourceTypeText
	case ext == ".docx" || declaredMime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return domain.SourceTypeDocx
	case isImageExt(ext) || strings.HasPrefix(declaredMime, "image/"):
		return domain.SourceTypeImage
	default:
		return domain.SourceTypeUnknown
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}

// segmentPlain handles markdown and plain text: whole document, one logical
// page, no pagination recorded.
func (s *Segmenter) segmentPlain(raw []byte, name string, sourceType domain.SourceType) []Piece {
	text := CleanText(string(raw))
	chunks := s.splitter.Split(text)

	pieces := make([]Piece, 0, len(chunks))
	for i, chunk := range chunks {
		pieces = append(pieces, Piece{
			ChunkID:    fmt.Sprintf("%s_c%d", name, i+1),
			Text:       chunk,
			SourceType: sourceType,
			DocName:    name,
		})
	}
	return pieces
}
