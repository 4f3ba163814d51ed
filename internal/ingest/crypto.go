package ingest

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen      = 32
	saltLen     = 16
	pbkdf2Iters = 100000
)

// Cipherbox derives a fresh AES-256-GCM key per sealed value from the
// user passphrase. Each Seal draws its own random salt and nonce, so
// filename, content and extracted text of one document never share key
// material.
type Cipherbox struct {
	passphrase []byte
}

func NewCipherbox(passphrase string) *Cipherbox {
	return &Cipherbox{passphrase: []byte(passphrase)}
}

// Sealed is one encrypted value. Ciphertext carries the GCM auth tag in
// its trailing 16 bytes.
type Sealed struct {
	Ciphertext []byte
	Salt       []byte
	Nonce      []byte
}

func (c *Cipherbox) Seal(plaintext []byte) (*Sealed, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	gcm, err := c.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return &Sealed{
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
		Salt:       salt,
		Nonce:      nonce,
	}, nil
}

func (c *Cipherbox) Open(sealed *Sealed) ([]byte, error) {
	gcm, err := c.aead(sealed.Salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func (c *Cipherbox) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.passphrase, salt, pbkdf2Iters, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}

func (s *Sealed) encode() (cipherB64, saltB64, nonceB64 string) {
	enc := base64.StdEncoding
	return enc.EncodeToString(s.Ciphertext), enc.EncodeToString(s.Salt), enc.EncodeToString(s.Nonce)
}
