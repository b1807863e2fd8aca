package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name         string
		providedType string
		filename     string
		data         []byte
		want         string
	}{
		{"provided type wins", "image/webp", "photo.jpg", nil, "image/webp"},
		{"extension lookup", "", "photo.png", nil, "image/png"},
		{"sniffed from content", "", "blob", []byte("\x89PNG\r\n\x1a\n"), "image/png"},
		{"falls back to octet-stream", "", "blob", nil, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data *bytes.Reader
			var got string
			if tt.data != nil {
				data = bytes.NewReader(tt.data)
				got = DetectContentType(tt.providedType, tt.filename, data)
			} else {
				got = DetectContentType(tt.providedType, tt.filename, nil)
			}
			if got != tt.want {
				t.Errorf("DetectContentType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAllowedAttachmentType(t *testing.T) {
	allowed := []string{"image/jpeg", "audio/webm", "video/mp4", "application/pdf"}
	for _, ct := range allowed {
		if !IsAllowedAttachmentType(ct) {
			t.Errorf("IsAllowedAttachmentType(%q) = false, want true", ct)
		}
	}

	denied := []string{"application/x-msdownload", "text/html", "application/zip", ""}
	for _, ct := range denied {
		if IsAllowedAttachmentType(ct) {
			t.Errorf("IsAllowedAttachmentType(%q) = true, want false", ct)
		}
	}
}

func TestAttachmentKey(t *testing.T) {
	userID := uuid.New()
	key := AttachmentKey(userID, ".jpg")

	if !strings.HasPrefix(key, "attachments/"+userID.String()+"/") {
		t.Errorf("key %q not scoped under user prefix", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key %q lost the file extension", key)
	}

	// Keys must not collide for repeated uploads.
	if key == AttachmentKey(userID, ".jpg") {
		t.Error("two uploads produced the same key")
	}
}

func TestTypeClassifiers(t *testing.T) {
	if !IsImage("image/png") || IsImage("audio/ogg") {
		t.Error("IsImage misclassified")
	}
	if !IsAudio("audio/ogg; codecs=opus") || IsAudio("image/png") {
		t.Error("IsAudio misclassified")
	}
	if got := ExtensionForContentType("audio/webm"); got != ".webm" {
		t.Errorf("extension = %q, want .webm", got)
	}
	if got := ExtensionForContentType("application/x-unknown-thing"); got != ".bin" {
		t.Errorf("extension = %q, want .bin for unknown type", got)
	}
}

func TestVoiceNoteKey(t *testing.T) {
	userID := uuid.New()
	key := VoiceNoteKey(userID, ".webm")

	if !strings.HasPrefix(key, "attachments/"+userID.String()+"/voice/") {
		t.Errorf("key %q not under the voice prefix", key)
	}
	if !strings.HasSuffix(key, ".webm") {
		t.Errorf("key %q missing extension", key)
	}
}
