package filemanager

import (
	"path"
	"strings"
)

const maxFilenameBytes = 255

// SanitizeFilename makes name safe for a Content-Disposition header. Path
// components are dropped, every byte outside [A-Za-z0-9_. -] becomes "_",
// and the result is cut to 255 bytes with the extension kept. Whitespace
// other than a plain space is replaced too, so no CR or LF reaches a header.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '.', r == '-', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || strings.Trim(out, ".") == "" {
		return "download"
	}

	if len(out) > maxFilenameBytes {
		ext := path.Ext(out)
		if len(ext) >= maxFilenameBytes {
			ext = ""
		}
		out = out[:maxFilenameBytes-len(ext)] + ext
	}
	return out
}
