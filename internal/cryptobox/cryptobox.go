// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cryptobox encrypts whole collection documents into the at-rest blob
// format shared with previously written data files:
//
//	base64( IV (16 bytes) || "::" || AES-256-CBC ciphertext )
//
// The blob is parsed at fixed offsets, never by searching for the separator,
// because the raw IV may itself contain the separator bytes.
//
// CBC carries no MAC, so the plaintext inside the ciphertext is framed with an
// HMAC-SHA256 tag keyed by a subkey derived from the master key. Any change to
// the stored blob then fails decryption instead of yielding garbage.
package cryptobox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Blob layout constants.
const (
	KeySize       = 32
	IVSize        = aes.BlockSize
	Separator     = "::"
	headerSize    = IVSize + len(Separator)
	tagSize       = sha256.Size
	tagMagic      = "fbk1"
	framingSize   = len(tagMagic) + tagSize
	integrityInfo = "firebook/integrity/v1"
)

// Box encrypts and decrypts payloads under a single process-wide key.
// It is safe for concurrent use.
type Box struct {
	block  cipher.Block
	key    []byte
	tagKey []byte
	legacy bool
}

// Option configures a Box.
type Option func(*Box)

// WithLegacyPlaintext makes Decrypt accept plaintexts written without an
// integrity tag. Tagged plaintexts are still verified.
func WithLegacyPlaintext() Option {
	return func(b *Box) { b.legacy = true }
}

// New creates a Box from a raw 32-byte key. The key is copied.
func New(key []byte, opts ...Option) (*Box, error) {
	if len(key) != KeySize {
		return nil, newError("init", fmt.Errorf("%w: got %d bytes, want %d", ErrKeyLength, len(key), KeySize))
	}
	k := make([]byte, KeySize)
	copy(k, key)

	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, newError("init", err)
	}

	b := &Box{block: block, key: k}
	b.tagKey, err = b.DeriveKey(integrityInfo, KeySize)
	if err != nil {
		return nil, newError("init", err)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// NewFromHex creates a Box from a 64-character hex key.
func NewFromHex(hexKey string, opts ...Option) (*Box, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, newError("init", fmt.Errorf("%w: %v", ErrKeyLength, err))
	}
	return New(key, opts...)
}

// GenerateHexKey returns a fresh random key in configuration format.
func GenerateHexKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// DeriveKey derives an n-byte subkey bound to info. Subkeys never equal the
// master key and are safe to hand to other components.
func (b *Box) DeriveKey(info string, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, b.key, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Encrypt seals plaintext into a base64 blob with a fresh random IV.
func (b *Box) Encrypt(plaintext []byte) ([]byte, error) {
	framed := make([]byte, 0, framingSize+len(plaintext))
	framed = append(framed, tagMagic...)
	framed = append(framed, b.tag(plaintext)...)
	framed = append(framed, plaintext...)

	padded := pkcs7Pad(framed, aes.BlockSize)

	raw := make([]byte, headerSize+len(padded))
	iv := raw[:IVSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, newError("encrypt", err)
	}
	copy(raw[IVSize:headerSize], Separator)
	cipher.NewCBCEncrypter(b.block, iv).CryptBlocks(raw[headerSize:], padded)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// Decrypt opens a blob produced by Encrypt (or by the legacy writer when
// WithLegacyPlaintext is set). Every failure matches ErrCrypto.
func (b *Box) Decrypt(blob []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(blob)))
	n, err := base64.StdEncoding.Strict().Decode(raw, bytes.TrimSpace(blob))
	if err != nil {
		return nil, newError("decrypt", fmt.Errorf("%w: %v", ErrEncoding, err))
	}
	raw = raw[:n]

	if len(raw) < headerSize+aes.BlockSize {
		return nil, newError("decrypt", ErrTruncated)
	}
	if string(raw[IVSize:headerSize]) != Separator {
		return nil, newError("decrypt", ErrSeparator)
	}
	iv, ciphertext := raw[:IVSize], raw[headerSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, newError("decrypt", ErrTruncated)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(b.block, iv).CryptBlocks(plain, ciphertext)
	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, newError("decrypt", err)
	}

	if len(plain) >= framingSize && string(plain[:len(tagMagic)]) == tagMagic {
		tag := plain[len(tagMagic):framingSize]
		payload := plain[framingSize:]
		if !hmac.Equal(tag, b.tag(payload)) {
			return nil, newError("decrypt", ErrIntegrity)
		}
		return payload, nil
	}
	if b.legacy {
		return plain, nil
	}
	return nil, newError("decrypt", ErrIntegrity)
}

func (b *Box) tag(payload []byte) []byte {
	mac := hmac.New(sha256.New, b.tagKey)
	mac.Write(payload)
	return mac.Sum(nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrPadding
	}
	var bad byte
	for _, c := range data[len(data)-n:] {
		bad |= c ^ byte(n)
	}
	if bad != 0 {
		return nil, ErrPadding
	}
	return data[:len(data)-n], nil
}
