package security

import (
	"crypto/rand"
	"errors"
	"fmt"
)

var (
	errNegativeLength = errors.New("length must be non-negative")
	errAlphabetSize   = errors.New("alphabet must hold between 1 and 256 symbols")
)

// RandomString draws length symbols uniformly from alphabet using
// crypto/rand. Bytes above the largest multiple of len(alphabet) are
// rejected so no symbol is favoured.
func RandomString(length int, alphabet string) (string, error) {
	if length < 0 {
		return "", errNegativeLength
	}
	if length == 0 {
		return "", nil
	}
	if len(alphabet) == 0 || len(alphabet) > 256 {
		return "", errAlphabetSize
	}

	ceiling := 256 - 256%len(alphabet)
	result := make([]byte, 0, length)
	buffer := make([]byte, length)
	for len(result) < length {
		if _, err := rand.Read(buffer); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, value := range buffer {
			if int(value) >= ceiling {
				continue
			}
			result = append(result, alphabet[int(value)%len(alphabet)])
			if len(result) == length {
				break
			}
		}
	}
	return string(result), nil
}
