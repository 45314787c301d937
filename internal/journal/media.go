package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/suPer8Hu/journal-platform/internal/common"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaFile  MediaKind = "file"
)

var ErrMediaRejected = errors.New("attachment rejected")

type mediaRule struct {
	dir      string
	exts     map[string]struct{}
	maxBytes int64
}

func exts(list ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, e := range list {
		m[e] = struct{}{}
	}
	return m
}

var mediaRules = map[MediaKind]mediaRule{
	MediaImage: {dir: "journal/images", exts: exts(".jpeg", ".jpg", ".png", ".gif"), maxBytes: 5 << 20},
	MediaVideo: {dir: "journal/videos", exts: exts(".mp4", ".mov", ".avi"), maxBytes: 20 << 20},
	MediaAudio: {dir: "journal/audio", exts: exts(".mp3", ".wav", ".ogg"), maxBytes: 10 << 20},
	MediaFile:  {dir: "journal/documents", exts: exts(".pdf", ".doc", ".docx", ".zip"), maxBytes: 10 << 20},
}

// MediaStore persists entry attachments and returns their relative paths.
type MediaStore interface {
	Save(ctx context.Context, kind MediaKind, fh *multipart.FileHeader) (string, error)
	Delete(ctx context.Context, paths ...string) error
}

// CheckMedia validates the extension and size of an upload for its kind.
func CheckMedia(kind MediaKind, fh *multipart.FileHeader) error {
	rule, ok := mediaRules[kind]
	if !ok {
		return fmt.Errorf("%w: unknown attachment kind %q", ErrMediaRejected, kind)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if _, ok := rule.exts[ext]; !ok {
		return fmt.Errorf("%w: %s does not accept %q files", ErrMediaRejected, kind, ext)
	}
	if fh.Size > rule.maxBytes {
		return fmt.Errorf("%w: %s exceeds %d MB", ErrMediaRejected, kind, rule.maxBytes>>20)
	}
	return nil
}

// DiskStore keeps attachments under a local root directory.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (s *DiskStore) Save(ctx context.Context, kind MediaKind, fh *multipart.FileHeader) (string, error) {
	if err := CheckMedia(kind, fh); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	rel := path.Join(mediaRules[kind].dir, id+strings.ToLower(filepath.Ext(fh.Filename)))
	dst := filepath.Join(s.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return rel, nil
}

func (s *DiskStore) Delete(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		full := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+p)))
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
