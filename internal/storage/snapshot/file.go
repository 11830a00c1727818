package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/canvasmesh-go/internal/storage"
)

var magicBytes = []byte("CMSNAP01")

const (
	fileExtension = ".snap"
	tempExtension = ".tmp"
	checksumSize  = 32
	headerVersion = 1

	// DefaultRetentionCount is the number of generations kept per key.
	DefaultRetentionCount = 3
)

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
)

type fileHeader struct {
	Version   int    `json:"version"`
	Key       string `json:"key"`
	CreatedAt int64  `json:"created_at"`
	Size      int    `json:"size"`
}

// Config configures the file store.
type Config struct {
	Dir string

	// RetentionCount is the number of generations kept per key.
	RetentionCount int

	Logger *slog.Logger
}

// DefaultConfig returns the default file store configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
	}
}

// FileStore implements storage.Store on the local filesystem.
type FileStore struct {
	cfg    Config
	logger *slog.Logger
	remove func(string) error
	closed atomic.Bool
}

// NewFileStore creates the store directory if needed.
func NewFileStore(cfg Config) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		cfg:    cfg,
		logger: logger.With("component", "snapshot"),
		remove: os.Remove,
	}, nil
}

// Info describes one stored generation.
type Info struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	CreatedAt int64  `json:"created_at"`
	Size      int64  `json:"size"`
	Path      string `json:"path"`
}

// Get returns the newest valid generation stored under key.
// Corrupted generations are skipped; when every generation is corrupted
// the last decode error is returned rather than ErrNotFound.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	gens, err := s.Generations(key)
	if err != nil {
		return nil, err
	}
	if len(gens) == 0 {
		return nil, storage.ErrNotFound
	}

	var lastErr error
	for i := len(gens) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, _, err := s.loadFile(gens[i].Path)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("snapshot: no valid generation for %q: %w", key, lastErr)
}

// Put writes a new generation for key and prunes old ones.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.keyDir(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("snapshot: create key dir: %w", err)
	}

	// ulid.Make is monotonic within a millisecond, so generation ids sort
	// in write order.
	gen := ulid.Make()
	id := strings.ToLower(gen.String())
	now := ulid.Time(gen.Time())

	file, err := os.CreateTemp(dir, id+"-*"+tempExtension)
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tempPath := file.Name()
	defer os.Remove(tempPath)

	if err := writeGeneration(file, key, value, now); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("snapshot: close: %w", err)
	}

	if err := os.Rename(tempPath, filepath.Join(dir, id+fileExtension)); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}

	// The new generation is durable once renamed; a failed prune only
	// leaves extra generations behind.
	if err := s.prune(key); err != nil {
		s.logger.Warn("snapshot prune failed", "key", key, "error", err)
	}
	return nil
}

func writeGeneration(file *os.File, key string, value []byte, now time.Time) error {
	hash := sha256.New()
	writer := io.MultiWriter(file, hash)

	if _, err := writer.Write(magicBytes); err != nil {
		return fmt.Errorf("snapshot: write magic: %w", err)
	}

	hdrJSON, err := json.Marshal(fileHeader{
		Version:   headerVersion,
		Key:       key,
		CreatedAt: now.UnixMilli(),
		Size:      len(value),
	})
	if err != nil {
		return fmt.Errorf("snapshot: marshal header: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrJSON)))
	if _, err := writer.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("snapshot: write header length: %w", err)
	}
	if _, err := writer.Write(hdrJSON); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(value)))
	if _, err := writer.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("snapshot: write data length: %w", err)
	}
	if _, err := writer.Write(value); err != nil {
		return fmt.Errorf("snapshot: write data: %w", err)
	}

	// Checksum trailer is not part of the hash.
	if _, err := file.Write(hash.Sum(nil)); err != nil {
		return fmt.Errorf("snapshot: write checksum: %w", err)
	}
	return nil
}

func (s *FileStore) loadFile(path string) ([]byte, *fileHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if stat.Size() < int64(len(magicBytes))+checksumSize {
		return nil, nil, ErrChecksumMismatch
	}

	dataLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, dataLen, checksumSize), expected); err != nil {
		return nil, nil, err
	}
	h := sha256.New()
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, dataLen), dataLen); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, dataLen))

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, nil, ErrInvalidMagic
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, nil, err
	}
	hdrLen := binary.BigEndian.Uint32(lenBuf[:])
	if hdrLen == 0 || int64(hdrLen) > dataLen {
		return nil, nil, fmt.Errorf("snapshot: bad header length %d", hdrLen)
	}
	hdrJSON := make([]byte, hdrLen)
	if _, err := io.ReadFull(br, hdrJSON); err != nil {
		return nil, nil, err
	}
	var hdr fileHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}
	if hdr.Version != headerVersion {
		return nil, nil, fmt.Errorf("snapshot: unsupported version %d", hdr.Version)
	}

	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if int64(size) > dataLen {
		return nil, nil, fmt.Errorf("snapshot: bad data length %d", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, nil, err
	}

	return data, &hdr, nil
}

// Delete removes every generation of key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	dir, err := s.keyDir(key)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("snapshot: delete %q: %w", key, err)
	}
	return nil
}

// List returns stored keys with the given prefix. Directory names are
// key hashes, so each key is read back from its newest readable header.
func (s *FileStore) List(_ context.Context, prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		key, ok := s.storedKey(e.Name())
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) storedKey(name string) (string, bool) {
	gens, err := generationsIn(filepath.Join(s.cfg.Dir, name), "")
	if err != nil {
		return "", false
	}
	for i := len(gens) - 1; i >= 0; i-- {
		_, hdr, err := s.loadFile(gens[i].Path)
		if err != nil || hdr.Key == "" {
			continue
		}
		if hashKey(hdr.Key) != name {
			return "", false
		}
		return hdr.Key, true
	}
	return "", false
}

// Generations lists the stored generations of key, oldest first.
func (s *FileStore) Generations(key string) ([]*Info, error) {
	dir, err := s.keyDir(key)
	if err != nil {
		return nil, err
	}
	return generationsIn(dir, key)
}

func generationsIn(dir, key string) ([]*Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []*Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(name, fileExtension)
		info := &Info{
			ID:   id,
			Key:  key,
			Size: fi.Size(),
			Path: filepath.Join(dir, name),
		}
		if parsed, err := ulid.ParseStrict(strings.ToUpper(id)); err == nil {
			info.CreatedAt = int64(parsed.Time())
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Ping checks that the store directory is accessible.
func (s *FileStore) Ping(_ context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	if _, err := os.Stat(s.cfg.Dir); err != nil {
		return fmt.Errorf("snapshot: stat dir: %w", err)
	}
	return nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}

// prune keeps the newest RetentionCount generations of key.
func (s *FileStore) prune(key string) error {
	gens, err := s.Generations(key)
	if err != nil {
		return err
	}
	var errs []error
	excess := len(gens) - s.cfg.RetentionCount
	for i := 0; i < excess; i++ {
		if err := s.remove(gens[i].Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *FileStore) keyDir(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("snapshot: empty key")
	}
	return filepath.Join(s.cfg.Dir, hashKey(key)), nil
}

// hashKey names a key directory. Keys may be longer than a file name
// allows once escaped, so the name is a fixed-length digest.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
