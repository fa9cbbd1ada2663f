package utils

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// MD5Hash generates MD5 hash of input string. Used for cache keys only,
// never for anything security sensitive.
func MD5Hash(input string) string {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:])
}

// HashClientIP produces a one-way hash of a client address so telemetry
// never stores the raw IP.
func HashClientIP(ip string) string {
	if ip == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:])[:32]
}

// GenerateRandomID generates a random hex ID of the given length
func GenerateRandomID(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)[:length]
}
