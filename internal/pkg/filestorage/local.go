package filestorage

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aits/backend/internal/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultAllowedTypes are the MIME types accepted for issue attachments.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"text/plain",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/zip",
}

// LocalStorage handles saving files to the local filesystem.
type LocalStorage struct {
	basePath     string
	baseURL      string
	maxSize      int64
	allowedTypes []string
}

// NewLocalStorage creates a new LocalStorage instance rooted at basePath.
// baseURL is prepended to stored paths to build download URLs. A maxSize of
// zero disables the size check.
func NewLocalStorage(basePath, baseURL string, maxSize int64) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error().Err(err).Str("path", basePath).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	logger.Info().Str("path", basePath).Msg("Local storage directory ensured")

	return &LocalStorage{
		basePath:     basePath,
		baseURL:      strings.TrimRight(baseURL, "/"),
		maxSize:      maxSize,
		allowedTypes: DefaultAllowedTypes,
	}, nil
}

// WithAllowedTypes replaces the accepted MIME types. An empty list accepts anything.
func (ls *LocalStorage) WithAllowedTypes(types ...string) *LocalStorage {
	ls.allowedTypes = types
	return ls
}

func (ls *LocalStorage) allowed(m *mimetype.MIME) bool {
	if len(ls.allowedTypes) == 0 {
		return true
	}
	for _, t := range ls.allowedTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// Save writes the upload to <base>/<subPath>/<uuid><ext>.
func (ls *LocalStorage) Save(fileHeader *multipart.FileHeader, subPath string) (*StoredFile, error) {
	if fileHeader == nil || fileHeader.Size == 0 {
		return nil, ErrEmptyFile
	}
	if ls.maxSize > 0 && fileHeader.Size > ls.maxSize {
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, fileHeader.Filename)
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("Failed to open uploaded file")
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	// Sniff from the head, then stitch it back in front of the rest.
	head := make([]byte, 3072)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	head = head[:n]
	mtype := mimetype.Detect(head)
	if !ls.allowed(mtype) {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotAllowed, mtype.String())
	}

	dir := filepath.Join(ls.basePath, filepath.FromSlash(subPath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error().Err(err).Str("path", dir).Msg("Failed to create subdirectory")
		return nil, fmt.Errorf("failed to create subdirectory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext == "" {
		ext = mtype.Extension()
	}
	name := uuid.New().String() + ext
	relPath := path.Join(filepath.ToSlash(subPath), name)
	dstPath := filepath.Join(dir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		logger.Error().Err(err).Str("path", dstPath).Msg("Failed to create destination file")
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		logger.Error().Err(err).Str("path", dstPath).Msg("Failed to copy uploaded file content")
		_ = os.Remove(dstPath)
		return nil, fmt.Errorf("failed to save file content: %w", err)
	}

	logger.Info().Str("filename", fileHeader.Filename).Str("saved_as", relPath).Str("mime", mtype.String()).Msg("File saved successfully")
	return &StoredFile{
		Path:     relPath,
		URL:      ls.baseURL + "/" + relPath,
		FileName: filepath.Base(fileHeader.Filename),
		Size:     written,
		MimeType: mtype.String(),
	}, nil
}

// Delete removes a file from the storage filesystem.
func (ls *LocalStorage) Delete(p string) error {
	full := ls.FullPath(p)
	if full == "" {
		return fmt.Errorf("invalid file path: %q", p)
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", full).Msg("File to delete does not exist")
			return nil
		}
		logger.Error().Err(err).Str("path", full).Msg("Failed to delete file")
		return fmt.Errorf("failed to delete file: %w", err)
	}
	logger.Info().Str("path", full).Msg("File deleted successfully")
	return nil
}

// FullPath maps a stored path onto the storage root. Paths escaping the root
// resolve to "".
func (ls *LocalStorage) FullPath(p string) string {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return ""
	}
	return filepath.Join(ls.basePath, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}
