// SPDX-License-Identifier: GPL-3.0-only

package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"silently-server/commons"

	"github.com/alexedwards/argon2id"
)

func NewCrypto() *Crypto {
	return &Crypto{
		ArgonTime:    uint32(commons.GetEnvInt("ARGON2_TIME", 1)),
		ArgonMemory:  uint32(commons.GetEnvInt("ARGON2_MEMORY", 65536)),
		ArgonThreads: uint8(commons.GetEnvInt("ARGON2_THREADS", 2)),
		ArgonKeyLen:  uint32(commons.GetEnvInt("ARGON2_KEYLEN", 32)),
		ArgonSaltLen: uint32(commons.GetEnvInt("ARGON2_SALTLEN", 16)),
	}
}

func (c *Crypto) HashPassword(password string) (string, error) {
	commons.Logger.Debug("Hashing password")
	params := &argon2id.Params{
		Memory:      c.ArgonMemory,
		Iterations:  c.ArgonTime,
		Parallelism: c.ArgonThreads,
		SaltLength:  c.ArgonSaltLen,
		KeyLength:   c.ArgonKeyLen,
	}
	hash, err := argon2id.CreateHash(password, params)
	if err != nil {
		return "", err
	}
	commons.Logger.Debug("Password hashed")
	return hash, nil
}

func (c *Crypto) VerifyPassword(password, encodedHash string) error {
	commons.Logger.Debug("Verifying password")
	match, err := argon2id.ComparePasswordAndHash(password, encodedHash)
	if err != nil {
		return err
	}
	if !match {
		return fmt.Errorf("password verification failed")
	}
	return nil
}

func GenerateRandomString(prefix string, length int, encoding string) (string, error) {
	supported_encodings := []string{"hex", "base64"}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	switch encoding {
	case "hex":
		return prefix + hex.EncodeToString(b), nil
	case "base64":
		return prefix + base64.RawURLEncoding.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("unsupported encoding: %s, Supported encodings are: %s", encoding, supported_encodings)
	}
}

// SignHMACSHA256 returns the lowercase hex HMAC-SHA256 of message under secret.
func SignHMACSHA256(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 compares signature against the expected hex digest in
// constant time. Signatures that are not valid hex never match.
func VerifyHMACSHA256(secret, message, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hmac.Equal(got, mac.Sum(nil))
}
