package filestorage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("attachments", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["attachments"][0]
}

func TestSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir, "http://localhost:8080/uploads", 1024)
	require.NoError(t, err)

	stored, err := ls.Save(fileHeader(t, "notes.txt", []byte("hello attachment")), "issues/7")
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", stored.FileName)
	assert.Equal(t, int64(16), stored.Size)
	assert.Contains(t, stored.MimeType, "text/plain")
	assert.Equal(t, "http://localhost:8080/uploads/"+stored.Path, stored.URL)
	assert.FileExists(t, filepath.Join(dir, "issues", "7", filepath.Base(stored.Path)))

	require.NoError(t, ls.Delete(stored.Path))
	_, err = os.Stat(ls.FullPath(stored.Path))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, ls.Delete(stored.Path))
}

func TestSaveRejectsLargeAndDisallowedFiles(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir(), "", 8)
	require.NoError(t, err)

	_, err = ls.Save(fileHeader(t, "big.txt", []byte("more than eight bytes")), "")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	ls.maxSize = 0
	elf := append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}, make([]byte, 64)...)
	_, err = ls.Save(fileHeader(t, "a.bin", elf), "")
	assert.ErrorIs(t, err, ErrTypeNotAllowed)
}

func TestFullPathStaysInsideRoot(t *testing.T) {
	ls := &LocalStorage{basePath: "/srv/uploads"}
	assert.Equal(t, filepath.Join("/srv/uploads", "etc", "passwd"), ls.FullPath("../../etc/passwd"))
	assert.Equal(t, "", ls.FullPath(""))
}
