// Package storage keeps uploaded files such as avatars and question images.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxImageBytes caps image uploads.
const DefaultMaxImageBytes = 5 << 20

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidKey      = errors.New("invalid object key")
	ErrNotFound        = errors.New("object not found")
)

// Store is an object store addressed by slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// URL is the public address of key.
	URL(key string) string
	// Key reverses URL. It reports false for URLs this store did not issue.
	Key(url string) (string, bool)
}

// Disk stores objects as files below a root directory.
type Disk struct {
	root      string
	publicURL string
	log       *zap.Logger
}

// NewDisk creates root if needed. publicURL is the prefix objects are
// served under, e.g. "/objects".
func NewDisk(root, publicURL string, log *zap.Logger) (*Disk, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Disk{root: root, publicURL: strings.TrimSuffix(publicURL, "/"), log: log}, nil
}

func (d *Disk) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(d.root, filepath.FromSlash(clean[1:])), nil
}

func (d *Disk) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("store object: %w", err)
	}
	d.log.Debug("stored object", zap.String("key", key), zap.String("size", humanize.Bytes(uint64(n))))
	return nil
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (d *Disk) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (d *Disk) URL(key string) string {
	return d.publicURL + "/" + key
}

func (d *Disk) Key(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, d.publicURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Handler serves objects over HTTP. Mount it with the public URL prefix
// stripped.
func (d *Disk) Handler() http.Handler {
	return http.FileServer(http.Dir(d.root))
}

// Image is a validated image upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

var imageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ReadImage reads at most limit bytes from r and checks that they hold a
// PNG, JPEG, GIF or WebP image.
func ReadImage(r io.Reader, limit int64) (*Image, error) {
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: the limit is %s", ErrTooLarge, humanize.Bytes(uint64(limit)))
	}
	ct := http.DetectContentType(data)
	ext, ok := imageTypes[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return &Image{Data: data, ContentType: ct, Ext: ext}, nil
}

// AvatarKey names a new avatar object of userID.
func AvatarKey(userID, ext string) string {
	return fmt.Sprintf("avatars/%s-%s.%s", userID, uuid.NewString(), ext)
}

// UploadKey names a new question image uploaded by userID.
func UploadKey(userID, ext string) string {
	return fmt.Sprintf("uploads/%s/%s.%s", userID, uuid.NewString(), ext)
}

// PutImage stores img under key and returns its public URL.
func PutImage(ctx context.Context, s Store, key string, img *Image) (string, error) {
	if err := s.Put(ctx, key, bytes.NewReader(img.Data)); err != nil {
		return "", err
	}
	return s.URL(key), nil
}
