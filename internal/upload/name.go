package upload

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

const maxBaseNameRunes = 200

var (
	reservedChars = strings.NewReplacer(
		`/`, "_", `\`, "_", ":", "_", "*", "_",
		"?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
	)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// RecoverName reinterprets a filename whose UTF-8 bytes were decoded as
// latin-1 somewhere on the way in, which is how browsers commonly mangle
// non-ASCII names. Recovery failure is non-fatal: the raw name is kept.
func RecoverName(name string) string {
	raw, err := charmap.ISO8859_1.NewEncoder().String(name)
	if err != nil || !utf8.ValidString(raw) {
		if name != raw || err != nil {
			log.Warn().Str("filename", name).Msg("filename encoding recovery failed, keeping raw name")
		}
		return name
	}
	return raw
}

// SanitizeBase strips reserved filesystem characters from a filename base,
// collapses whitespace and caps the length.
func SanitizeBase(base string) string {
	cleaned := reservedChars.Replace(base)
	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if utf8.RuneCountInString(cleaned) > maxBaseNameRunes {
		cleaned = string([]rune(cleaned)[:maxBaseNameRunes])
	}
	return cleaned
}

// imageStoredName composes the collision-free key for a transcoded image.
// The timestamp is shared by every file in the batch.
func imageStoredName(prefix string, stamp int64) string {
	return fmt.Sprintf("%s-%d-%s%s", prefix, stamp, randomSuffix(), canonicalImageExt)
}

// documentStoredName keeps the sanitized original base readable inside the
// generated key and preserves the original extension.
func documentStoredName(prefix, original string, stamp int64) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := SanitizeBase(strings.TrimSuffix(original, filepath.Ext(original)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s-%s-%d-%s%s", prefix, base, stamp, randomSuffix(), ext)
}

func randomSuffix() string {
	return uuid.NewString()[:8]
}
