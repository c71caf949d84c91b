package util

import (
	"math/rand"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	// Alphabet is the set short codes are drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	DefaultCodeLength = 6
)

var (
	ErrURLRequired = errors.New("Original URL is required")
	ErrInvalidURL  = errors.New("Please provide a valid URL with http:// or https://")
)

// ValidateURL accepts only absolute http/https URLs with a host.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// GenerateShortCode returns length characters picked uniformly from Alphabet.
// Codes are not unique by themselves; callers check the store and retry.
func GenerateShortCode(length int) string {
	if length <= 0 {
		length = DefaultCodeLength
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = Alphabet[rand.Intn(len(Alphabet))]
	}
	return string(b)
}
