package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// ageHeader starts every age file.
const ageHeader = "age-encryption.org/v1"

// EncryptedExt is appended to the names of encrypted archives.
const EncryptedExt = ".age"

// ErrPassphraseRequired is returned when an encrypted archive is opened
// without a passphrase.
var ErrPassphraseRequired = errors.New("archive is encrypted, passphrase required")

// scryptWorkFactor overrides age's default scrypt cost when non-zero.
var scryptWorkFactor = 0

// IsEncrypted reports whether data starts with an age header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(ageHeader))
}

// encrypt returns a writer that encrypts to w with the passphrase.
// The caller must Close it to flush the final chunk.
func encrypt(w io.Writer, passphrase string) (io.WriteCloser, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if scryptWorkFactor > 0 {
		recipient.SetWorkFactor(scryptWorkFactor)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	return encWriter, nil
}

// decrypt returns the plaintext of an age file encrypted with the passphrase.
func decrypt(data []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting archive: %w", err)
	}

	plain, err := io.ReadAll(decReader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted archive: %w", err)
	}
	return plain, nil
}
