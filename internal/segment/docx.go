package segment

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

// segmentDocx extracts paragraph text from word/document.xml and chunks it
// as a single logical page.
func (s *Segmenter) segmentDocx(raw []byte, name string) ([]Piece, int, error) {
	text, err := extractDocxText(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read docx %s: %w", name, err)
	}

	chunks := s.splitter.Split(CleanText(text))
	pieces := make([]Piece, 0, len(chunks))
	for i, chunk := range chunks {
		pieces = append(pieces, Piece{
			ChunkID:    fmt.Sprintf("%s_c%d", name, i+1),
			Text:       chunk,
			SourceType: domain.SourceTypeDocx,
			DocName:    name,
		})
	}
	return pieces, 1, nil
}

func extractDocxText(raw []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return decodeDocumentXML(rc)
	}

	return "", fmt.Errorf("word/document.xml not found in archive")
}

// decodeDocumentXML walks the WordprocessingML token stream collecting text
// runs (w:t) and inserting paragraph breaks at w:p boundaries.
func decodeDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}
