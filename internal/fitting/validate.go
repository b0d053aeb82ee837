package fitting

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/samber/lo"
	_ "golang.org/x/image/webp"
)

// DefaultMaxUploadBytes is the size rule applied when none is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// DefaultAllowedMIME is the raster allow-list accepted by the form.
var DefaultAllowedMIME = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

// Validator applies the type and size rules to candidate files. A zero
// MaxBytes disables the size rule.
type Validator struct {
	AllowedMIME []string
	MaxBytes    int64
}

// NewValidator returns a validator with the default allow-list and the given size rule.
func NewValidator(allowed []string, maxBytes int64) Validator {
	allowed = lo.Uniq(lo.FilterMap(allowed, func(v string, _ int) (string, bool) {
		v = normalizeMIME(v)
		return v, v != ""
	}))
	if len(allowed) == 0 {
		allowed = DefaultAllowedMIME
	}
	if maxBytes < 0 {
		maxBytes = 0
	}
	return Validator{AllowedMIME: allowed, MaxBytes: maxBytes}
}

// Validate returns nil for an acceptable file or a human-readable reason.
func (v Validator) Validate(f *File) error {
	if f == nil || len(f.Data) == 0 {
		return fmt.Errorf("no image selected")
	}
	allowed := v.AllowedMIME
	if len(allowed) == 0 {
		allowed = DefaultAllowedMIME
	}
	mime := normalizeMIME(f.MIME)
	if !lo.Contains(allowed, mime) {
		return fmt.Errorf("unsupported file type %q: only %s images are allowed", f.MIME, describeMIME(allowed))
	}
	if v.MaxBytes > 0 && f.Size() > v.MaxBytes {
		return fmt.Errorf("file is too large (%s): the limit is %s", humanBytes(f.Size()), humanBytes(v.MaxBytes))
	}
	return nil
}

// CheckDecodable verifies the bytes can be read as an image.
func CheckDecodable(f *File) error {
	if f == nil || len(f.Data) == 0 {
		return fmt.Errorf("image could not be loaded")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err != nil {
		return fmt.Errorf("image could not be loaded: %v", err)
	}
	return nil
}

func normalizeMIME(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if idx := strings.Index(v, ";"); idx >= 0 {
		v = strings.TrimSpace(v[:idx])
	}
	return v
}

func describeMIME(allowed []string) string {
	names := lo.Uniq(lo.Map(allowed, func(m string, _ int) string {
		name := strings.TrimPrefix(m, "image/")
		if name == "jpg" {
			name = "jpeg"
		}
		return strings.ToUpper(name)
	}))
	return strings.Join(names, ", ")
}

func humanBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib {
		return fmt.Sprintf("%.1fMB", float64(n)/mib)
	}
	return fmt.Sprintf("%dKB", (n+1023)/1024)
}
