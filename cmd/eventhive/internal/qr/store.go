package qr

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	goqrcode "github.com/skip2/go-qrcode"
)

// Encoder renders text as an image.
type Encoder interface {
	Encode(text string) ([]byte, error)
}

// PNGEncoder renders QR codes as PNG images.
type PNGEncoder struct {
	Size  int
	Level goqrcode.RecoveryLevel
}

// NewPNGEncoder returns an encoder producing size×size PNGs at medium recovery.
func NewPNGEncoder(size int) PNGEncoder {
	return PNGEncoder{Size: size, Level: goqrcode.Medium}
}

// Encode implements Encoder.
func (e PNGEncoder) Encode(text string) ([]byte, error) {
	png, err := goqrcode.Encode(text, e.Level, e.Size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// FileStore keeps QR images on local disk with an LRU of recently served files.
type FileStore struct {
	dir   string
	cache *lru.Cache[string, []byte]
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, cacheSize int) (*FileStore, error) {
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create qr cache: %w", err)
	}
	return &FileStore{dir: dir, cache: cache}, nil
}

// FileName returns the image file name for a registration.
func FileName(userID, eventID int64) string {
	return fmt.Sprintf("event%d_user%d.png", eventID, userID)
}

// Path returns the absolute-or-relative path of a registration image.
func (s *FileStore) Path(userID, eventID int64) string {
	return filepath.Join(s.dir, FileName(userID, eventID))
}

// Save writes an image, creating the directory on first use.
func (s *FileStore) Save(userID, eventID int64, png []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create qr directory: %w", err)
	}
	path := s.Path(userID, eventID)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write qr image: %w", err)
	}
	s.cache.Add(path, png)
	return path, nil
}

// Load reads an image. A missing file yields an error matching fs.ErrNotExist.
func (s *FileStore) Load(userID, eventID int64) ([]byte, error) {
	path := s.Path(userID, eventID)
	if png, ok := s.cache.Get(path); ok {
		return png, nil
	}
	png, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read qr image: %w", err)
	}
	s.cache.Add(path, png)
	return png, nil
}

// Remove deletes an image if present.
func (s *FileStore) Remove(userID, eventID int64) error {
	path := s.Path(userID, eventID)
	s.cache.Remove(path)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove qr image: %w", err)
	}
	return nil
}

// Generator issues registration QR codes.
type Generator struct {
	encoder Encoder
	store   *FileStore
}

// NewGenerator combines an encoder with a store.
func NewGenerator(encoder Encoder, store *FileStore) *Generator {
	return &Generator{encoder: encoder, store: store}
}

// Issue renders and stores the QR code for a registration.
func (g *Generator) Issue(p Payload) (string, error) {
	png, err := g.encoder.Encode(p.String())
	if err != nil {
		return "", err
	}
	return g.store.Save(p.UserID, p.EventID, png)
}

// Image returns the stored QR code, issuing it again if the file is gone.
func (g *Generator) Image(p Payload) ([]byte, error) {
	png, err := g.store.Load(p.UserID, p.EventID)
	if err == nil {
		return png, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	log.Printf("qr image for event %d user %d missing, regenerating", p.EventID, p.UserID)
	if _, err := g.Issue(p); err != nil {
		return nil, err
	}
	return g.store.Load(p.UserID, p.EventID)
}

// Discard removes the stored QR code for a registration.
func (g *Generator) Discard(userID, eventID int64) error {
	return g.store.Remove(userID, eventID)
}
