package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/internal/entity"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotPDF           = errors.New("document: not a PDF")
	ErrDocumentTooLarge = errors.New("document: exceeds maximum upload size")
	ErrEncodingFailed   = errors.New("document: encoding failed")
)

var pdfMagic = []byte("%PDF-")

// Encoder turns raw uploaded bytes into a transport-safe base64 form plus
// a transient preview file under the uploads dir. Preview files are scoped
// resources: acquired at encode time, released on replacement or teardown.
type Encoder struct {
	uploadsDir string
	maxBytes   int
	logger     logger.ILogger
}

func NewEncoder(uploadsDir string, maxBytes int, log logger.ILogger) (*Encoder, error) {
	if err := os.MkdirAll(uploadsDir, 0755); err != nil {
		return nil, err
	}
	return &Encoder{
		uploadsDir: uploadsDir,
		maxBytes:   maxBytes,
		logger:     log,
	}, nil
}

func (e *Encoder) Encode(displayName string, content []byte) (*entity.Manuscript, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrEncodingFailed)
	}
	if e.maxBytes > 0 && len(content) > e.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrDocumentTooLarge, len(content), e.maxBytes)
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return nil, ErrNotPDF
	}

	id := uuid.New()
	handle, err := e.writePreview(id, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}

	return &entity.Manuscript{
		Id:            id,
		DisplayName:   displayName,
		EncodedBytes:  base64.StdEncoding.EncodeToString(content),
		PreviewHandle: handle,
		CreatedAt:     time.Now(),
	}, nil
}

// Materialize re-derives a preview handle from a stored manuscript's
// encoded bytes, used when switching back to a stored conversation.
// Preview-only manuscripts (bytes stripped) cannot be materialized.
func (e *Encoder) Materialize(m *entity.Manuscript) (string, error) {
	if !m.Resumable() {
		return "", nil
	}
	content, err := base64.StdEncoding.DecodeString(m.EncodedBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	handle, err := e.writePreview(m.Id, content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return handle, nil
}

// Release removes the preview file behind a handle. Safe to call with an
// empty or already-released handle.
func (e *Encoder) Release(handle string) {
	if handle == "" {
		return
	}
	path := filepath.Join(e.uploadsDir, filepath.Base(handle))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("DocumentEncoder", "Failed to release preview file", map[string]interface{}{
			"handle": handle,
			"error":  err.Error(),
		})
	}
}

func (e *Encoder) writePreview(id uuid.UUID, content []byte) (string, error) {
	name := id.String() + ".pdf"
	if err := os.WriteFile(filepath.Join(e.uploadsDir, name), content, 0644); err != nil {
		return "", err
	}
	return "/uploads/" + name, nil
}
