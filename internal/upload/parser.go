package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evalsum/internal/models"
)

const (
	// FileField and KeyField are the multipart field names read from uploads.
	FileField = "file"
	KeyField  = "apiKey"

	// multipart framing and the apiKey field on top of the file itself
	formOverhead = 1 << 20
)

// Form is the normalized view of an upload request.
type Form struct {
	APIKey string
	// File is nil when the request carried no file part.
	File *models.UploadedFile
}

// Parser decodes multipart uploads into the scoped upload directory.
type Parser struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
}

// NewParser constructs a Parser writing into dir and accepting files up to maxBytes.
func NewParser(dir string, maxBytes int64, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{dir: dir, maxBytes: maxBytes, logger: logger.Named("upload")}
}

// Parse reads the multipart body of r. The first file in the file field is
// written to the upload directory; any further files are ignored. A request
// without a file is not an error here.
func (p *Parser) Parse(w http.ResponseWriter, r *http.Request) (*Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(p.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, p.tooLarge(err)
		}
		return nil, models.NewError(models.KindFormatInvalid, "Invalid multipart form", err)
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			p.logger.Warn("remove multipart temp files", zap.Error(err))
		}
	}()

	form := &Form{APIKey: firstValue(r.MultipartForm.Value[KeyField])}
	headers := r.MultipartForm.File[FileField]
	if len(headers) == 0 {
		return form, nil
	}
	if len(headers) > 1 {
		p.logger.Debug("extra files ignored", zap.Int("count", len(headers)-1))
	}
	header := headers[0]
	if header.Size > p.maxBytes {
		return nil, p.tooLarge(fmt.Errorf("file %d bytes over %d cap", header.Size, p.maxBytes))
	}

	file, err := p.save(header)
	if err != nil {
		return nil, models.NewError(models.KindInternalError, "Failed to store uploaded file", err)
	}
	form.File = file
	return form, nil
}

func (p *Parser) tooLarge(cause error) error {
	msg := fmt.Sprintf("File exceeds the %d MB upload limit", p.maxBytes>>20)
	return models.NewError(models.KindFileTooLarge, msg, cause)
}

func (p *Parser) save(header *multipart.FileHeader) (*models.UploadedFile, error) {
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open form file: %w", err)
	}
	defer src.Close()

	original := filepath.Base(header.Filename)
	stored := UniqueName(original, time.Now())
	path := filepath.Join(p.dir, stored)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	sniff := make([]byte, 512)
	n, _ := io.ReadFull(src, sniff)
	written, err := dst.Write(sniff[:n])
	if err == nil {
		var rest int64
		rest, err = io.Copy(dst, src)
		written += int(rest)
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	return &models.UploadedFile{
		OriginalName: original,
		StoredName:   stored,
		Path:         path,
		ContentType:  http.DetectContentType(sniff[:n]),
		Size:         int64(written),
	}, nil
}

// Remove unlinks the temp file behind f. A file that is already gone is not an error.
func Remove(f *models.UploadedFile) error {
	if f == nil || f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// UniqueName builds "<unix-millis>-<random><ext>" keeping the lower-cased
// extension of original.
func UniqueName(original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, ext)
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
