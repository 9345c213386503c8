package extract

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"
)

// extractText reads a file as UTF-8 text with a lossy decode policy:
// bytes that do not form valid UTF-8 are dropped, never an error.
func extractText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decodeLossy(data), nil
}

// decodeLossy strips invalid UTF-8 byte sequences from data.
func decodeLossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			data = data[1:]
			continue
		}
		b.WriteRune(r)
		data = data[size:]
	}
	return b.String()
}
