package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"menucrawler/crawler/internal/domain"
)

// ImageArchive collects downloaded images into an in-memory ZIP file.
type ImageArchive struct {
	buf   bytes.Buffer
	zw    *zip.Writer
	names map[string]int
	count int
}

func NewImageArchive() *ImageArchive {
	a := &ImageArchive{names: make(map[string]int)}
	a.zw = zip.NewWriter(&a.buf)
	return a
}

// Add stores one image under a file name derived from the category and image URL.
func (a *ImageArchive) Add(category domain.Category, imageURL string, data []byte) (string, error) {
	name := a.uniqueName(ImageFilename(category.Name, imageURL))

	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("failed to write %s to archive: %w", name, err)
	}

	a.count++
	return name, nil
}

// Len returns the number of images added so far.
func (a *ImageArchive) Len() int {
	return a.count
}

// Bytes finalizes the archive and returns its content.
func (a *ImageArchive) Bytes() ([]byte, error) {
	if err := a.zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return a.buf.Bytes(), nil
}

// uniqueName suffixes _2, _3, ... until the name is unused.
// Generated names are reserved as well.
func (a *ImageArchive) uniqueName(name string) string {
	if a.names[name] == 0 {
		a.names[name] = 1
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := a.names[name] + 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if a.names[candidate] == 0 {
			a.names[name] = n
			a.names[candidate] = 1
			return candidate
		}
	}
}

// ImageFilename turns a category name into a safe file name, keeping the
// extension of the image URL (".jpg" when it has none).
func ImageFilename(categoryName, imageURL string) string {
	ext := ".jpg"
	if u, err := url.Parse(imageURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); e != "" && len(e) <= 5 {
			ext = e
		}
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range categoryName {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	name := strings.TrimSuffix(b.String(), "_")
	if name == "" {
		name = "category"
	}
	return name + ext
}
