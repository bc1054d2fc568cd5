package export

import (
	"strings"
	"time"
)

// SanitizeName заменяет каждый символ вне [A-Za-z0-9] на '_' и приводит к нижнему регистру.
// Акценты не транслитерируются: "Café" -> "caf_".
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// SuggestedFilename возвращает имя файла вида <имя>_<YYYY-MM-DD>.<ext>
func SuggestedFilename(name, ext string, date time.Time) string {
	ext = strings.TrimPrefix(ext, ".")
	return SanitizeName(name) + "_" + date.UTC().Format("2006-01-02") + "." + ext
}
