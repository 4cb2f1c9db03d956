package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// MinPasswordLength is the shortest password EnableEncryption accepts
const MinPasswordLength = 8

var (
	ErrAlreadyEncrypted = errors.New("encryption is already enabled")
	ErrNotEncrypted     = errors.New("encryption is not enabled")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// EnableEncryption encrypts every stored dataset and sidecar with password
func (s *Storage) EnableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		return ErrAlreadyEncrypted
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	k, err := deriveKeys(password)
	if err != nil {
		return err
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	sealed, err := k.seal()
	if err != nil {
		return fmt.Errorf("failed to encrypt verification file: %w", err)
	}
	if err := os.WriteFile(verifyPath, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write verification file: %w", err)
	}

	files, err := s.dataFiles()
	if err != nil {
		os.Remove(verifyPath)
		return fmt.Errorf("failed to scan files: %w", err)
	}

	for i, path := range files {
		if err := rewriteFile(path, func(data []byte) ([]byte, error) {
			if isAgeEncrypted(data) {
				return nil, nil
			}
			return encryptData(data, k.recipient)
		}); err != nil {
			rollback(files[:i], k.identity)
			os.Remove(verifyPath)
			return fmt.Errorf("failed to encrypt %s: %w", filepath.Base(path), err)
		}
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("encrypted"), 0600); err != nil {
		return fmt.Errorf("failed to create marker file: %w", err)
	}

	s.encrypted = true
	s.identity = k.identity
	s.recipient = k.recipient
	return nil
}

// DisableEncryption decrypts every stored file in place (requires the current password)
func (s *Storage) DisableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return ErrNotEncrypted
	}

	k, err := s.verify(password)
	if err != nil {
		return err
	}

	files, err := s.dataFiles()
	if err != nil {
		return fmt.Errorf("failed to scan files: %w", err)
	}

	for _, path := range files {
		if err := rewriteFile(path, func(data []byte) ([]byte, error) {
			if !isAgeEncrypted(data) {
				return nil, nil
			}
			return decryptData(data, k.identity)
		}); err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", filepath.Base(path), err)
		}
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	s.encrypted = false
	s.identity = nil
	s.recipient = nil
	return nil
}

// dataFiles lists the CSV and JSON files under the base directory
func (s *Storage) dataFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || skipEncryption(path) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".csv" || ext == ".json" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// rewriteFile replaces a file's content with transform's output.
// A nil result leaves the file untouched.
func rewriteFile(path string, transform func([]byte) ([]byte, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := transform(data)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return atomicWrite(path, out, 0600)
}

// rollback decrypts files that were encrypted before a failed migration (best effort)
func rollback(files []string, identity *age.ScryptIdentity) {
	for _, path := range files {
		rewriteFile(path, func(data []byte) ([]byte, error) {
			if !isAgeEncrypted(data) {
				return nil, nil
			}
			return decryptData(data, identity)
		})
	}
}
