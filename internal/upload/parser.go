package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"genico/internal/domain"
)

// ErrNotFound is returned when the body carries no usable "file" part.
var ErrNotFound = errors.New("file part not found")

var (
	headerSeparator    = []byte("\r\n\r\n")
	lineBreak          = []byte("\r\n")
	closingMarker      = []byte("--")
	dispositionHeader  = []byte("Content-Disposition")
	fileFieldName      = []byte(`name="file"`)
	filenameToken      = []byte("filename=")
	boundaryParamToken = "boundary="
)

// Parser extracts the single "file" field from a multipart/form-data body.
type Parser struct {
	MaxSize int64
}

func NewParser(maxSize int64) *Parser {
	return &Parser{MaxSize: maxSize}
}

// Parse reads exactly contentLength bytes from body and returns the first part
// named "file". It never returns a partially read payload: a short read, an
// unknown length or a length above MaxSize all yield ErrNotFound.
func (p *Parser) Parse(contentType string, contentLength int64, body io.Reader) (*domain.UploadedFile, error) {
	if contentType == "" || !strings.Contains(contentType, "multipart/form-data") {
		return nil, fmt.Errorf("content type %q: %w", contentType, ErrNotFound)
	}

	idx := strings.LastIndex(contentType, boundaryParamToken)
	if idx < 0 {
		return nil, fmt.Errorf("missing boundary: %w", ErrNotFound)
	}
	boundary := contentType[idx+len(boundaryParamToken):]
	if boundary == "" {
		return nil, fmt.Errorf("empty boundary: %w", ErrNotFound)
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("unknown content length: %w", ErrNotFound)
	}
	if p.MaxSize > 0 && contentLength > p.MaxSize {
		return nil, fmt.Errorf("content length %d exceeds limit %d: %w", contentLength, p.MaxSize, ErrNotFound)
	}

	data := make([]byte, contentLength)
	if _, err := io.ReadFull(body, data); err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, ErrNotFound)
	}

	return extract(data, []byte("--"+boundary))
}

func extract(data, delimiter []byte) (*domain.UploadedFile, error) {
	for _, part := range bytes.Split(data, delimiter) {
		header, payload, found := bytes.Cut(part, headerSeparator)
		if !bytes.Contains(header, dispositionHeader) || !hasFileField(header) {
			continue
		}
		if !found {
			return nil, fmt.Errorf("file part has no header terminator: %w", ErrNotFound)
		}

		return &domain.UploadedFile{
			Name: filename(header),
			Data: trimPayload(payload),
		}, nil
	}

	return nil, ErrNotFound
}

// hasFileField reports whether header declares name="file" as the field name,
// not as the tail of a filename="file" parameter.
func hasFileField(header []byte) bool {
	for offset := 0; ; {
		i := bytes.Index(header[offset:], fileFieldName)
		if i < 0 {
			return false
		}
		i += offset
		if i == 0 || header[i-1] == ' ' || header[i-1] == ';' || header[i-1] == '\t' {
			return true
		}
		offset = i + len(fileFieldName)
	}
}

func filename(header []byte) string {
	for _, line := range bytes.Split(header, lineBreak) {
		_, value, found := bytes.Cut(line, filenameToken)
		if !found {
			continue
		}
		value = bytes.Trim(bytes.TrimSpace(value), `"`)
		return strings.ToValidUTF8(string(value), "")
	}
	return domain.DefaultFilename
}

// trimPayload drops the line break that precedes the next delimiter. Bodies
// cut off right after a closing marker lose the marker as well.
func trimPayload(payload []byte) []byte {
	if trimmed, ok := bytes.CutSuffix(payload, lineBreak); ok {
		return trimmed
	}
	if trimmed, ok := bytes.CutSuffix(payload, closingMarker); ok {
		trimmed, _ = bytes.CutSuffix(trimmed, lineBreak)
		return trimmed
	}
	return payload
}
