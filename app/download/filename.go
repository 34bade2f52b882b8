package download

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxBaseLength = 180

// FileName derives the destination file name for an item id. The mapping is
// deterministic so a re-downloaded episode overwrites its earlier copy.
func FileName(id, ext string) string {
	normalized := norm.NFKC.String(strings.TrimSpace(id))

	var b strings.Builder
	for _, r := range normalized {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case unicode.IsControl(r) || unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	base := strings.TrimLeft(b.String(), ".")
	if base == "" {
		base = "episode"
	}

	if len(base) > maxBaseLength {
		sum := sha256.Sum256([]byte(id))
		base = truncate(base, maxBaseLength-13) + "-" + hex.EncodeToString(sum[:6])
	}

	return base + ext
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
