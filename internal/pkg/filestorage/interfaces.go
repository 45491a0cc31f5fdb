package filestorage

import (
	"errors"
	"mime/multipart"
)

var (
	ErrFileTooLarge   = errors.New("file exceeds the maximum upload size")
	ErrEmptyFile      = errors.New("file is empty")
	ErrTypeNotAllowed = errors.New("file type is not allowed")
)

// StoredFile describes a file written to storage.
type StoredFile struct {
	Path     string // location inside the storage root, used for deletes
	URL      string // public download URL
	FileName string // original client file name
	Size     int64
	MimeType string
}

// FileStorage defines the interface for file storage operations
type FileStorage interface {
	// Save writes the upload under subPath and sniffs its content type.
	Save(fileHeader *multipart.FileHeader, subPath string) (*StoredFile, error)

	// Delete removes a stored file. Missing files are not an error.
	Delete(path string) error

	// FullPath returns the filesystem path for a stored path.
	FullPath(path string) string
}
