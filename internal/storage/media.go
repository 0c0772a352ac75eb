package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoFile is returned when Upload is called without a local path.
var ErrNoFile = errors.New("no file to upload")

const mediaPrefix = "media"

// Asset is a stored media object and its public URL.
type Asset struct {
	Key string
	URL string
}

// MediaUploader pushes locally staged files into object storage.
type MediaUploader struct {
	storage       *Storage
	publicBaseURL string
	newKey        func(ext string) string
}

// NewMediaUploader constructs an uploader that builds public URLs from publicBaseURL.
func NewMediaUploader(s *Storage, publicBaseURL string) *MediaUploader {
	return &MediaUploader{
		storage:       s,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		newKey: func(ext string) string {
			return path.Join(mediaPrefix, uuid.NewString()+ext)
		},
	}
}

// Upload stores the file at localPath and returns its public URL. The local
// file is removed whether or not the upload succeeds.
func (u *MediaUploader) Upload(ctx context.Context, localPath string) (Asset, error) {
	if strings.TrimSpace(localPath) == "" {
		return Asset{}, ErrNoFile
	}
	defer func() {
		_ = os.Remove(localPath)
	}()

	file, err := os.Open(localPath)
	if err != nil {
		return Asset{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Asset{}, fmt.Errorf("stat upload: %w", err)
	}
	if info.Size() == 0 {
		return Asset{}, errors.New("upload is empty")
	}

	contentType, err := sniffContentType(file)
	if err != nil {
		return Asset{}, err
	}

	key := u.newKey(strings.ToLower(filepath.Ext(localPath)))
	if err := u.storage.Put(ctx, key, file, info.Size(), contentType); err != nil {
		return Asset{}, fmt.Errorf("put %s: %w", key, err)
	}
	return Asset{Key: key, URL: u.publicBaseURL + "/" + key}, nil
}

// Remove deletes a previously uploaded asset.
func (u *MediaUploader) Remove(ctx context.Context, asset Asset) error {
	if asset.Key == "" {
		return nil
	}
	return u.storage.Delete(ctx, asset.Key)
}

func sniffContentType(file *os.File) (string, error) {
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}
