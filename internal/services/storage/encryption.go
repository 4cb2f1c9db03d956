package storage

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// keys is the scrypt key pair derived from the storage password
type keys struct {
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
}

func deriveKeys(password string) (keys, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return keys{}, fmt.Errorf("failed to create identity: %w", err)
	}
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return keys{}, fmt.Errorf("failed to create recipient: %w", err)
	}
	return keys{identity: identity, recipient: recipient}, nil
}

// seal encrypts the verification marker, proving later that a password
// matches without touching any dataset
func (k keys) seal() ([]byte, error) {
	return encryptData([]byte(verifyMagic), k.recipient)
}

// opens reports whether sealed is the verification marker under these keys
func (k keys) opens(sealed []byte) bool {
	plain, err := decryptData(sealed, k.identity)
	return err == nil && string(plain) == verifyMagic
}

// encryptData seals data for the given recipient
func encryptData(data []byte, recipient age.Recipient) ([]byte, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("age encrypt: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("age write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("age close: %w", err)
	}

	return buf.Bytes(), nil
}

// decryptData opens Age-encrypted data with the given identity
func decryptData(data []byte, identity age.Identity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, fmt.Errorf("age decrypt: %w", err)
	}
	return io.ReadAll(r)
}
