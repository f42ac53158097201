// Package content loads game content for the session runtime. Content may
// be a raw file or live inside a compressed archive (ZIP, 7z, gzip, tar.gz,
// RAR); archives are detected by magic bytes with an extension fallback and
// the first entry matching a known content extension is extracted. Arduboy
// .arduboy packages are ZIP archives carrying the game .hex alongside
// metadata, so they take the ZIP path.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions lists the content file extensions the runtime accepts.
var DefaultExtensions = []string{".hex", ".bin"}

// Safety cap on extracted content size.
const maxContentSize = 8 * 1024 * 1024

var (
	// ErrNoGameFile is returned when an archive holds no recognizable
	// game file.
	ErrNoGameFile = errors.New("no game file found in archive")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("unsupported content format")

	// ErrFileTooLarge is returned when content exceeds the size cap.
	ErrFileTooLarge = errors.New("content exceeds maximum size limit")
)

var (
	magicZIP      = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEmpty = []byte{0x50, 0x4B, 0x05, 0x06}
	magic7z       = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip     = []byte{0x1F, 0x8B}
	magicRAR      = []byte{0x52, 0x61, 0x72, 0x21}
)

type format int

const (
	formatUnknown format = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// Load reads game content from path. It returns the content bytes, the name
// of the file the content came from (basename, useful for display and
// content identity), and any error.
func Load(path string, extensions []string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open content: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, "", fmt.Errorf("failed to read content header: %w", err)
	}

	switch detectFormat(header[:n], path, extensions) {
	case formatRaw:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, "", fmt.Errorf("failed to seek content: %w", err)
		}
		data, err := readCapped(f)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read content: %w", err)
		}
		return data, filepath.Base(path), nil
	case formatZIP:
		return extractZIP(path, extensions)
	case format7z:
		return extract7z(path, extensions)
	case formatGzip:
		return extractGzip(path, extensions)
	case formatRAR:
		return extractRAR(path, extensions)
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// detectFormat picks the container format from magic bytes, falling back to
// the file extension when the header is inconclusive.
func detectFormat(header []byte, path string, extensions []string) format {
	if bytes.HasPrefix(header, magicZIP) || bytes.HasPrefix(header, magicZIPEmpty) {
		return formatZIP
	}
	if bytes.HasPrefix(header, magicRAR) {
		return formatRAR
	}
	if bytes.HasPrefix(header, magic7z) {
		return format7z
	}
	if bytes.HasPrefix(header, magicGzip) {
		return formatGzip
	}

	lower := strings.ToLower(path)
	switch filepath.Ext(lower) {
	case ".zip", ".arduboy":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	}
	if strings.HasSuffix(lower, ".tar.gz") {
		return formatGzip
	}

	for _, ext := range extensions {
		if filepath.Ext(lower) == strings.ToLower(ext) {
			return formatRaw
		}
	}
	return formatUnknown
}

// isGameFile reports whether name carries one of the given extensions.
func isGameFile(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// readCapped reads r fully, failing once the size cap is exceeded.
func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxContentSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxContentSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
