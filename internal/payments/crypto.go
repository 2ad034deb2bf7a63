package payments

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// signPayload computes the HMAC-SHA-512 digest over the pipe-joined field
// values. The gateway sends the same digest, hex encoded, in RS.
func signPayload(fields []string, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature recomputes the digest and compares it against the received
// RS value in constant time. Hex case differences are not a mismatch.
func verifySignature(fields []string, secret, provided string) bool {
	want := signPayload(fields, secret)
	got := strings.ToLower(strings.TrimSpace(provided))
	return hmac.Equal([]byte(want), []byte(got))
}

// encryptField encrypts one redirect-URL value with AES-128-CBC under the
// shared gateway key. The random IV is prepended to the ciphertext and the
// whole blob is base64url encoded.
func encryptField(plaintext, key string) (string, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", fmt.Errorf("gateway cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), block.BlockSize())
	out := make([]byte, block.BlockSize()+len(padded))
	iv := out[:block.BlockSize()]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("gateway cipher iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[block.BlockSize():], padded)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

func pkcs7Pad(in []byte, blockSize int) []byte {
	pad := blockSize - len(in)%blockSize
	out := make([]byte, len(in)+pad)
	copy(out, in)
	for i := len(in); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}
