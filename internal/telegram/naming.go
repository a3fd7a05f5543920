package telegram

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gotd/td/tg"
)

// documentName is the file name the document was uploaded with, or
// "<id><ext>" derived from its MIME type.
func documentName(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if a, ok := attr.(*tg.DocumentAttributeFilename); ok {
			if name := filepath.Base(strings.ReplaceAll(a.FileName, `\`, "/")); name != "." && name != "/" && name != "" {
				return name
			}
		}
	}

	return strconv.FormatInt(doc.ID, 10) + extension(doc.MimeType)
}

func extension(mimeType string) string {
	if mimeType == "" {
		return ""
	}

	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}

	return exts[0]
}

// uniquePath returns dir/name, or "name (n).ext" for the first n that does not
// exist yet.
func uniquePath(dir, name string) (string, error) {
	path := filepath.Join(dir, name)

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}

		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}

		path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}
}
