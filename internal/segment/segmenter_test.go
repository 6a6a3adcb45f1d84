package segment

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) Text(_ []byte) (string, error) {
	return f.text, f.err
}

func TestDetectSourceType(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mime     string
		expected domain.SourceType
	}{
		{"pdf by extension", "report.pdf", "", domain.SourceTypePDF},
		{"pdf by mime", "upload", "application/pdf", domain.SourceTypePDF},
		{"markdown", "notes.md", "", domain.SourceTypeMarkdown},
		{"markdown long extension", "notes.markdown", "", domain.SourceTypeMarkdown},
		{"plain text", "readme.txt", "", domain.SourceTypeText},
		{"plain text by mime", "blob", "text/plain", domain.SourceTypeText},
		{"docx", "contract.docx", "", domain.SourceTypeDocx},
		{"png image", "diagram.png", "", domain.SourceTypeImage},
		{"image by mime", "photo", "image/jpeg", domain.SourceTypeImage},
		{"uppercase extension", "REPORT.PDF", "", domain.SourceTypePDF},
		{"unknown", "archive.zip", "application/zip", domain.SourceTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectSourceType(tt.fileName, tt.mime))
		})
	}
}

func TestSegmentUnsupportedTypeYieldsNothing(t *testing.T) {
	s := New(nil)

	pieces, pages, err := s.Segment([]byte("binary junk"), "archive.zip", "application/zip")
	require.NoError(t, err)
	assert.Empty(t, pieces)
	assert.Equal(t, 0, pages)
}

func TestSegmentPlainText(t *testing.T) {
	s := New(nil)

	pieces, pages, err := s.Segment([]byte("hello world, a small file"), "notes.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	require.Len(t, pieces, 1)

	piece := pieces[0]
	assert.Equal(t, "notes.txt_c1", piece.ChunkID)
	assert.Equal(t, "hello world, a small file", piece.Text)
	assert.Nil(t, piece.PageNumber)
	assert.Equal(t, domain.SourceTypeText, piece.SourceType)
	assert.Equal(t, "notes.txt", piece.DocName)
	assert.False(t, piece.IsScreenshot)
}

func TestSegmentPlainTextChunkIDsAreSequential(t *testing.T) {
	s := &Segmenter{splitter: NewRecursiveSplitter(30, 5)}

	text := strings.Repeat("all work and no play. ", 10)
	pieces, pages, err := s.Segment([]byte(text), "shine.md", "")
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	require.Greater(t, len(pieces), 1)

	for i, piece := range pieces {
		assert.Equal(t, "shine.md_c"+strconv.Itoa(i+1), piece.ChunkID)
		assert.Equal(t, domain.SourceTypeMarkdown, piece.SourceType)
	}
}

func TestSegmentImageWithOCRText(t *testing.T) {
	s := New(fakeOCR{text: "scanned text from the image"})

	pieces, pages, err := s.Segment([]byte{0x89, 0x50}, "scan.png", "")
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	require.Len(t, pieces, 1)

	piece := pieces[0]
	assert.Equal(t, "scan.png_c1", piece.ChunkID)
	assert.Equal(t, "scanned text from the image", piece.Text)
	require.Len(t, piece.Images, 1)
	assert.Equal(t, "0", piece.Images[0].ID)
	assert.True(t, strings.HasPrefix(piece.Images[0].Base64, "data:image/png;base64,"))
	assert.Equal(t, "image/png", piece.Images[0].MimeType)
}

func TestSegmentImageWithoutText(t *testing.T) {
	tests := []struct {
		name string
		ocr  OCRClient
	}{
		{"no ocr configured", nil},
		{"ocr returns empty", fakeOCR{text: "   "}},
		{"ocr fails", fakeOCR{err: errors.New("tesseract not installed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.ocr)

			pieces, _, err := s.Segment([]byte{0xff, 0xd8}, "photo.jpg", "")
			require.NoError(t, err)
			require.Len(t, pieces, 1)
			assert.Equal(t, noTextPlaceholder, pieces[0].Text)
			require.Len(t, pieces[0].Images, 1)
			assert.Equal(t, "image/jpg", pieces[0].Images[0].MimeType)
		})
	}
}
