// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cryptobox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func newTestBox(t *testing.T, opts ...Option) *Box {
	t.Helper()
	b, err := New(testKey(t), opts...)
	require.NoError(t, err)
	return b
}

// legacyBlob builds a blob the way the previous writer did: no integrity tag,
// caller-chosen IV.
func legacyBlob(t *testing.T, key, iv, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	padded := pkcs7Pad(append([]byte(nil), plaintext...), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	raw := append(append(append([]byte(nil), iv...), Separator...), ct...)
	return []byte(base64.StdEncoding.EncodeToString(raw))
}

func TestRoundTrip(t *testing.T) {
	box := newTestBox(t)

	inputs := [][]byte{
		{},
		[]byte("[]"),
		[]byte(`[{"id":"a","name":"Engine 1"}]`),
		bytes.Repeat([]byte{0x00}, 15),
		bytes.Repeat([]byte{0xff}, 16),
		bytes.Repeat([]byte("x"), 4097),
	}

	for _, in := range inputs {
		blob, err := box.Encrypt(in)
		require.NoError(t, err)

		out, err := box.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, len(in), len(out))
		assert.True(t, bytes.Equal(in, out))
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	box := newTestBox(t)
	a, err := box.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := box.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncrypt_WireFormat(t *testing.T) {
	box := newTestBox(t)
	blob, err := box.Encrypt([]byte(`{"k":"v"}`))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(string(blob))
	require.NoError(t, err)
	assert.Equal(t, Separator, string(raw[IVSize:IVSize+2]))
	assert.Zero(t, (len(raw)-IVSize-2)%aes.BlockSize)
}

func TestDecrypt_TamperDetection(t *testing.T) {
	box := newTestBox(t)
	blob, err := box.Encrypt([]byte(`[{"id":"1","username":"alice","role":"operator"}]`))
	require.NoError(t, err)

	for i := range blob {
		tampered := append([]byte(nil), blob...)
		tampered[i] ^= 0x01

		_, err := box.Decrypt(tampered)
		if !errors.Is(err, ErrCrypto) {
			t.Fatalf("flipping byte %d: expected ErrCrypto, got %v", i, err)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	blob, err := newTestBox(t).Encrypt([]byte("secret payload"))
	require.NoError(t, err)

	_, err = newTestBox(t).Decrypt(blob)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrypto)
}

func TestDecrypt_Malformed(t *testing.T) {
	box := newTestBox(t)
	iv := make([]byte, IVSize)

	noSep := base64.StdEncoding.EncodeToString(append(append([]byte(nil), iv...), bytes.Repeat([]byte{'x'}, 34)...))
	short := base64.StdEncoding.EncodeToString(append(append([]byte(nil), iv...), ':', ':'))
	odd := base64.StdEncoding.EncodeToString(append(append(append([]byte(nil), iv...), ':', ':'), make([]byte, 17)...))

	tests := []struct {
		name  string
		blob  string
		cause error
	}{
		{"not base64", "%%%not-base64%%%", ErrEncoding},
		{"empty", "", ErrTruncated},
		{"missing separator", noSep, ErrSeparator},
		{"no ciphertext", short, ErrTruncated},
		{"partial block", odd, ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := box.Decrypt([]byte(tt.blob))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCrypto)
			assert.ErrorIs(t, err, tt.cause)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, "decrypt", cerr.Op)
		})
	}
}

func TestNew_KeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		_, err := New(make([]byte, n))
		assert.ErrorIs(t, err, ErrKeyLength, "len %d", n)
		assert.ErrorIs(t, err, ErrCrypto, "len %d", n)
	}
}

func TestNewFromHex(t *testing.T) {
	key, err := GenerateHexKey()
	require.NoError(t, err)
	assert.Len(t, key, 64)

	_, err = NewFromHex(key)
	require.NoError(t, err)

	_, err = NewFromHex("zz" + key[2:])
	assert.ErrorIs(t, err, ErrKeyLength)

	_, err = NewFromHex(key[:62])
	assert.ErrorIs(t, err, ErrKeyLength)
}

func TestDecrypt_LegacyPlaintext(t *testing.T) {
	key := testKey(t)
	iv := make([]byte, IVSize)
	_, err := rand.Read(iv)
	require.NoError(t, err)
	blob := legacyBlob(t, key, iv, []byte(`[{"id":"x"}]`))

	strict, err := New(key)
	require.NoError(t, err)
	_, err = strict.Decrypt(blob)
	assert.ErrorIs(t, err, ErrIntegrity)

	lenient, err := New(key, WithLegacyPlaintext())
	require.NoError(t, err)
	out, err := lenient.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"x"}]`, string(out))
}

func TestDecrypt_IVContainingSeparator(t *testing.T) {
	key := testKey(t)
	// Separator bytes at the start of the IV would fool marker-search parsing.
	iv := []byte("::::::::::::::::")
	require.Len(t, iv, IVSize)

	box, err := New(key, WithLegacyPlaintext())
	require.NoError(t, err)

	out, err := box.Decrypt(legacyBlob(t, key, iv, []byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(out))
}

func TestDeriveKey(t *testing.T) {
	key := testKey(t)
	box, err := New(key)
	require.NoError(t, err)

	a, err := box.DeriveKey("csrf", 32)
	require.NoError(t, err)
	b, err := box.DeriveKey("csrf", 32)
	require.NoError(t, err)
	c, err := box.DeriveKey("other", 32)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, hex.EncodeToString(key), hex.EncodeToString(a))
}

func TestError_Message(t *testing.T) {
	err := newError("decrypt", ErrPadding)
	assert.True(t, strings.HasPrefix(err.Error(), "cryptobox decrypt:"))
	assert.ErrorIs(t, err, ErrPadding)
}
