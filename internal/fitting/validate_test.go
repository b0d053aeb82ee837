package fitting

import (
	"strings"
	"testing"
)

func TestValidatorRules(t *testing.T) {
	v := NewValidator(nil, 1024)
	tests := []struct {
		name    string
		file    *File
		wantErr string
	}{
		{name: "png accepted", file: &File{MIME: "image/png", Data: make([]byte, 10)}},
		{name: "jpeg with params accepted", file: &File{MIME: "IMAGE/JPEG; charset=binary", Data: make([]byte, 10)}},
		{name: "webp accepted", file: &File{MIME: "image/webp", Data: make([]byte, 10)}},
		{name: "gif rejected", file: &File{MIME: "image/gif", Data: make([]byte, 10)}, wantErr: "unsupported file type"},
		{name: "pdf rejected", file: &File{MIME: "application/pdf", Data: make([]byte, 10)}, wantErr: "unsupported file type"},
		{name: "too large", file: &File{MIME: "image/png", Data: make([]byte, 2048)}, wantErr: "too large"},
		{name: "empty", file: &File{MIME: "image/png"}, wantErr: "no image"},
		{name: "nil", file: nil, wantErr: "no image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.file)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatorZeroMaxDisablesSizeRule(t *testing.T) {
	v := NewValidator(nil, 0)
	if err := v.Validate(&File{MIME: "image/png", Data: make([]byte, 32<<20)}); err != nil {
		t.Fatalf("expected no size rule, got %v", err)
	}
}

func TestNewValidatorNormalizesAllowList(t *testing.T) {
	v := NewValidator([]string{" Image/PNG ", "image/png", ""}, DefaultMaxUploadBytes)
	if len(v.AllowedMIME) != 1 || v.AllowedMIME[0] != "image/png" {
		t.Fatalf("AllowedMIME = %v", v.AllowedMIME)
	}
	if err := v.Validate(&File{MIME: "image/jpeg", Data: []byte{1}}); err == nil {
		t.Fatalf("jpeg should be rejected by a png-only list")
	}
}

func TestCheckDecodable(t *testing.T) {
	if err := CheckDecodable(pngFile(t, "a.png")); err != nil {
		t.Fatalf("png: %v", err)
	}
	if err := CheckDecodable(jpegFile(t, "a.jpg")); err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	err := CheckDecodable(&File{MIME: "image/png", Data: []byte("definitely not a png")})
	if err == nil || !strings.Contains(err.Error(), "could not be loaded") {
		t.Fatalf("garbage: err = %v", err)
	}
}
