package storage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxUploadSize bounds submission uploads.
const MaxUploadSize = 5 << 20 // 5MB

var acceptedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// FileStore keeps pact submissions on local disk and hands back opaque
// pointers. Access control (creator-only, single view) is enforced by the
// caller at streaming time, not here.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save streams an upload to disk after size and content-type checks. The
// type is sniffed from the leading bytes, never trusted from the client.
// Returns the stored pointer.
func (s *FileStore) Save(pactID, fileName string, r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if _, ok := acceptedTypes[contentType]; !ok {
		return "", fmt.Errorf("unsupported file type %s: only JPEG, PNG and PDF are allowed", contentType)
	}

	name := fmt.Sprintf("%s-%d-%s", pactID, time.Now().UnixNano(), sanitize(fileName))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	// +1 so a stream exactly over the limit is detected, not truncated.
	written, err := io.Copy(f, io.MultiReader(strings.NewReader(string(head)), io.LimitReader(r, MaxUploadSize+1-int64(len(head)))))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if written > MaxUploadSize {
		os.Remove(path)
		return "", fmt.Errorf("file exceeds the %dMB limit", MaxUploadSize>>20)
	}

	return path, nil
}

// Open returns the stored file and its sniffed content type for streaming.
func (s *FileStore) Open(path string) (io.ReadCloser, string, error) {
	// Pointers must stay inside the store directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, "", err
	}
	if !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return nil, "", fmt.Errorf("file pointer escapes storage root")
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, "", fmt.Errorf("open submission: %w", err)
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", err
	}
	return f, http.DetectContentType(head[:n]), nil
}

func sanitize(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
