// Package secret pulls an archive password out of a message caption and
// encodes it into the downloaded file's name.
package secret

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Marker introduces the secret in a caption. Matching is case-insensitive.
const Marker = "password:"

// Prefix starts the base name of a file renamed with a secret.
const Prefix = "pass_"

// Extract returns the first whitespace-delimited word after the last
// occurrence of Marker. A caption without the marker, or with nothing after
// it, has no secret. Path separators in the word are replaced with '_'.
func Extract(caption string) (string, bool) {
	idx := lastIndexFold(caption, Marker)
	if idx < 0 {
		return "", false
	}

	fields := strings.Fields(caption[idx+len(Marker):])
	if len(fields) == 0 {
		return "", false
	}

	return sanitize(fields[0]), true
}

// FileName returns the base name a file named base gets for secret.
func FileName(base, secret string) string {
	return Prefix + secret + "_" + base
}

// Apply renames localPath to carry secret in its base name and returns the
// final path. An existing file is never replaced: the name gets a " (n)"
// suffix before its extension instead. Without a secret localPath is returned
// unchanged. On a rename failure the original file is left where it is.
func Apply(localPath, secret string, ok bool) (string, error) {
	if !ok {
		return localPath, nil
	}

	finalPath, err := freePath(filepath.Dir(localPath), FileName(filepath.Base(localPath), secret))
	if err != nil {
		return "", err
	}

	if err := os.Rename(localPath, finalPath); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", localPath, err)
	}

	return finalPath, nil
}

// freePath returns dir/name, or the first "base (n).ext" variant of it that
// does not exist yet.
func freePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}

		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}

		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
}

// lastIndexFold is strings.LastIndex with ASCII-only case folding, working on
// byte offsets of s. substr must be ASCII.
func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if equalFoldASCII(s[i:i+len(substr)], substr) {
			return i
		}
	}

	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}

	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}

	return c
}

func sanitize(token string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}

		return r
	}, token)
}
