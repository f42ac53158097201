package content

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeZip(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for entry, data := range entries {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("zip create %s: %v", entry, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func TestLoadRawFile(t *testing.T) {
	dir := t.TempDir()
	want := []byte(":00000001FF\n")
	path := writeFile(t, dir, "game.hex", want)

	data, name, err := Load(path, DefaultExtensions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %q, want %q", data, want)
	}
	if name != "game.hex" {
		t.Errorf("name = %q, want game.hex", name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.hex"), DefaultExtensions)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "game.xyz", []byte("not a game"))

	_, _, err := Load(path, DefaultExtensions)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadZip(t *testing.T) {
	dir := t.TempDir()
	want := []byte("hexdata")
	path := writeZip(t, dir, "game.zip", map[string][]byte{
		"readme.txt": []byte("ignore me"),
		"game.hex":   want,
	})

	data, name, err := Load(path, DefaultExtensions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %q, want %q", data, want)
	}
	if name != "game.hex" {
		t.Errorf("name = %q, want game.hex", name)
	}
}

func TestLoadArduboyPackage(t *testing.T) {
	// .arduboy files are ZIP archives with the game hex next to metadata.
	dir := t.TempDir()
	want := []byte("hexdata")
	path := writeZip(t, dir, "game.arduboy", map[string][]byte{
		"info.json": []byte("{}"),
		"game.hex":  want,
	})

	data, _, err := Load(path, DefaultExtensions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %q, want %q", data, want)
	}
}

func TestLoadZipNoGameFile(t *testing.T) {
	dir := t.TempDir()
	path := writeZip(t, dir, "empty.zip", map[string][]byte{
		"readme.txt": []byte("nothing here"),
	})

	_, _, err := Load(path, DefaultExtensions)
	if !errors.Is(err, ErrNoGameFile) {
		t.Errorf("err = %v, want ErrNoGameFile", err)
	}
}

func TestLoadGzip(t *testing.T) {
	dir := t.TempDir()
	want := []byte("hexdata")

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(want); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	gw.Close()
	path := writeFile(t, dir, "game.hex.gz", buf.Bytes())

	data, name, err := Load(path, DefaultExtensions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %q, want %q", data, want)
	}
	if name != "game.hex" {
		t.Errorf("name = %q, want game.hex", name)
	}
}

func TestLoadTarGz(t *testing.T) {
	dir := t.TempDir()
	want := []byte("hexdata")

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	hdr := &tar.Header{Name: "game.hex", Mode: 0644, Size: int64(len(want))}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := tw.Write(want); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	tw.Close()
	gw.Close()
	path := writeFile(t, dir, "game.tar.gz", buf.Bytes())

	data, name, err := Load(path, DefaultExtensions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %q, want %q", data, want)
	}
	if name != "game.hex" {
		t.Errorf("name = %q, want game.hex", name)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		path   string
		want   format
	}{
		{"zip magic", []byte{0x50, 0x4B, 0x03, 0x04, 0x00}, "file.dat", formatZIP},
		{"7z magic", []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, "file.dat", format7z},
		{"gzip magic", []byte{0x1F, 0x8B, 0x08}, "file.dat", formatGzip},
		{"rar magic", []byte{0x52, 0x61, 0x72, 0x21}, "file.dat", formatRAR},
		{"arduboy extension", []byte{0x00, 0x00}, "game.arduboy", formatZIP},
		{"raw hex extension", []byte{0x3A, 0x30}, "game.hex", formatRaw},
		{"raw bin extension", []byte{0x00, 0x01}, "game.bin", formatRaw},
		{"tarball extension", []byte{0x00, 0x00}, "game.tar.gz", formatGzip},
		{"unknown", []byte{0x00, 0x00}, "game.xyz", formatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectFormat(tt.header, tt.path, DefaultExtensions)
			if got != tt.want {
				t.Errorf("detectFormat = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsGameFile(t *testing.T) {
	if !isGameFile("subdir/GAME.HEX", DefaultExtensions) {
		t.Error("expected uppercase extension to match")
	}
	if isGameFile("game.txt", DefaultExtensions) {
		t.Error("expected .txt to not match")
	}
}
