package jdb

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// randomNumber returns an 18-digit request id as required by the JDB API.
func randomNumber() (string, error) {
	min := big.NewInt(100000000000000000)
	max := big.NewInt(999999999999999999)
	n, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		return "", err
	}

	n.Add(n, min)
	return n.String(), nil
}

// Hmac256 signs body with key and returns the hex digest.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// VerifyHMACAndRetrieveUUIDKey verifies a webhook signature and returns the
// bill key if valid.
func VerifyHMACAndRetrieveUUIDKey(key, uuidKey, receivedHMAC string) (string, bool) {
	expectedHMAC := Hmac256([]byte(uuidKey), []byte(key))
	if hmac.Equal([]byte(receivedHMAC), []byte(expectedHMAC)) {
		return uuidKey, true
	}

	return "", false
}

// GenerateHash bcrypt-hashes a shared secret for storage.
func GenerateHash(secret []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareHash checks a shared secret against its stored bcrypt hash.
func CompareHash(storedHash, secret []byte) bool {
	return bcrypt.CompareHashAndPassword(storedHash, secret) == nil
}
