package blob

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func newTestService(t *testing.T, maxBytes int64) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir(), maxBytes)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestSaveAvatarRoundTrip(t *testing.T) {
	svc := newTestService(t, 1<<20)

	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	stored, err := svc.SaveAvatar(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("SaveAvatar() error = %v", err)
	}
	if stored.MimeType != "image/png" {
		t.Errorf("mime type = %q, want image/png", stored.MimeType)
	}
	if stored.SizeBytes != int64(len(payload)) {
		t.Errorf("size = %d, want %d", stored.SizeBytes, len(payload))
	}
	if !strings.HasPrefix(stored.StoragePath, "avatar/") {
		t.Errorf("storage path = %q, want avatar/ prefix", stored.StoragePath)
	}

	file, err := svc.Open(stored.StoragePath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer file.Close()
	got, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("stored bytes differ from upload")
	}
}

func TestSaveAvatarRejectsNonImage(t *testing.T) {
	svc := newTestService(t, 1<<20)

	_, err := svc.SaveAvatar(strings.NewReader("<html><script>alert(1)</script></html>"))
	if !errors.Is(err, ErrDisallowedType) {
		t.Fatalf("SaveAvatar() error = %v, want ErrDisallowedType", err)
	}
}

func TestSaveAvatarRejectsOversize(t *testing.T) {
	svc := newTestService(t, 32)

	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	_, err := svc.SaveAvatar(bytes.NewReader(payload))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("SaveAvatar() error = %v, want ErrFileTooLarge", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	svc := newTestService(t, 1<<20)

	for _, path := range []string{"../secrets", "/etc/passwd", "."} {
		if _, err := svc.Open(path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Open(%q) error = %v, want ErrInvalidPath", path, err)
		}
	}
}
