package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"filippo.io/age"
)

const (
	// ageHeader is the prefix of Age-encrypted files
	ageHeader = "age-encryption.org"

	// markerFile indicates encryption is enabled
	markerFile = ".encrypted"

	// verifyFile is used to validate the password
	verifyFile = ".encryption-verify"

	// verifyMagic is the expected content in the verify file
	verifyMagic = `{"magic":"csvdash-encryption-verify","version":1}`
)

var (
	// ErrLocked is returned when reading encrypted data before Unlock
	ErrLocked = errors.New("file is encrypted but storage is locked")
	// ErrIncorrectPassword is returned when the password does not open the store
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrInvalidName is returned for names that would leave the base directory
	ErrInvalidName = errors.New("invalid file name")
)

// Storage keeps named blobs under one directory, transparently encrypting
// them with Age once encryption is enabled
type Storage struct {
	baseDir   string
	encrypted bool
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
	mu        sync.RWMutex
}

// New creates a Storage rooted at baseDir, creating the directory if needed
func New(baseDir string) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &Storage{baseDir: baseDir}
	if _, err := os.Stat(filepath.Join(baseDir, markerFile)); err == nil {
		s.encrypted = true
	}
	return s, nil
}

// BaseDir returns the base directory
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// IsEncrypted returns true if the data directory is encrypted
func (s *Storage) IsEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encrypted
}

// IsUnlocked returns true if the store is readable
func (s *Storage) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.encrypted || s.identity != nil
}

// Unlock verifies the password and keeps the derived key in memory
func (s *Storage) Unlock(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return nil
	}

	k, err := s.verify(password)
	if err != nil {
		return err
	}

	s.identity = k.identity
	s.recipient = k.recipient
	return nil
}

// verify checks password against the verification file
func (s *Storage) verify(password string) (keys, error) {
	k, err := deriveKeys(password)
	if err != nil {
		return keys{}, err
	}

	sealed, err := os.ReadFile(filepath.Join(s.baseDir, verifyFile))
	if err != nil {
		return keys{}, fmt.Errorf("failed to read verification file: %w", err)
	}
	if !k.opens(sealed) {
		return keys{}, ErrIncorrectPassword
	}
	return k, nil
}

// Lock clears the encryption key from memory
func (s *Storage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.recipient = nil
}

// Path resolves a name to its location on disk
func (s *Storage) Path(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.baseDir, clean), nil
}

// ReadFile reads and, when needed, decrypts the named file
func (s *Storage) ReadFile(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isAgeEncrypted(data) {
		if s.identity == nil {
			return nil, ErrLocked
		}
		return decryptData(data, s.identity)
	}
	return data, nil
}

// WriteFile writes the named file atomically, encrypting it when enabled
func (s *Storage) WriteFile(name string, data []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.encrypted && !skipEncryption(path) {
		if s.recipient == nil {
			return ErrLocked
		}
		encrypted, err := encryptData(data, s.recipient)
		if err != nil {
			return fmt.Errorf("failed to encrypt: %w", err)
		}
		data = encrypted
	}

	return atomicWrite(path, data, 0600)
}

// Remove deletes the named file
func (s *Storage) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// Stat returns file info for the named file
func (s *Storage) Stat(name string) (fs.FileInfo, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Stat(path)
}

// List returns the sorted names in the base directory matching pattern
func (s *Storage) List(pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, pattern))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		if base == markerFile || base == verifyFile || strings.HasSuffix(base, ".tmp") {
			continue
		}
		names = append(names, base)
	}
	sort.Strings(names)
	return names, nil
}

// atomicWrite writes data to a temp file and renames it into place
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// skipEncryption reports whether a file is stored in the clear
func skipEncryption(path string) bool {
	base := filepath.Base(path)
	return base == markerFile || base == verifyFile
}

// isAgeEncrypted checks if data starts with the Age encryption header
func isAgeEncrypted(data []byte) bool {
	return len(data) > len(ageHeader) && string(data[:len(ageHeader)]) == ageHeader
}
