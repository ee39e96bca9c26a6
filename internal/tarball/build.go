// Package tarball packs rendered configuration files into a reproducible
// tar.gz: identical inputs always give identical bytes and checksum.
package tarball

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// File is one archive member. Mode 0 means 0600.
type File struct {
	Name string
	Data []byte
	Mode int64
}

// Build returns the archive and its sha256 in hex. Members are sorted by
// name; duplicate names are an error.
func Build(files []File) ([]byte, string, error) {
	var buf bytes.Buffer

	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, "", err
	}
	gz.ModTime = time.Unix(0, 0)
	tw := tar.NewWriter(gz)

	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	seen := make(map[string]bool, len(sorted))
	for _, f := range sorted {
		name := cleanName(f.Name)
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, "", fmt.Errorf("duplicate archive member %q", name)
		}
		seen[name] = true

		mode := f.Mode
		if mode == 0 {
			mode = 0o600
		}
		hdr := &tar.Header{
			Name:    name,
			Mode:    mode,
			Size:    int64(len(f.Data)),
			ModTime: time.Unix(0, 0),
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, "", err
		}
		if _, err := tw.Write(f.Data); err != nil {
			return nil, "", err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, "", err
	}
	if err := gz.Close(); err != nil {
		return nil, "", err
	}

	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:]), nil
}

// cleanName strips leading slashes and parent references so members always
// extract below the working directory.
func cleanName(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(name, "/")
}
