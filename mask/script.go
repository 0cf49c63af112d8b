package mask

import (
	"regexp"
	"strings"
)

var hanRe = regexp.MustCompile(`[\x{3400}-\x{9FFF}\x{F900}-\x{FAFF}]`)

// UsesHan reports whether a language is written with Han characters in
// whole or part (Chinese, Japanese, Korean).
func UsesHan(code string) bool {
	c := strings.ToLower(strings.TrimSpace(code))
	for _, p := range []string{"zh", "ja", "ko"} {
		if c == p || strings.HasPrefix(c, p+"-") || strings.HasPrefix(c, p+"_") {
			return true
		}
	}
	return false
}

// IsChinese reports whether code names a Chinese variant.
func IsChinese(code string) bool {
	c := strings.ToLower(strings.TrimSpace(code))
	return c == "zh" || strings.HasPrefix(c, "zh-") || strings.HasPrefix(c, "zh_")
}

// StripHan removes Han ideographs and trims the result.
func StripHan(s string) string {
	return strings.TrimSpace(hanRe.ReplaceAllString(s, ""))
}

// ForScript strips Han ideographs when the target language does not use
// them, and otherwise returns s unchanged.
func ForScript(s, targetCode string) string {
	if UsesHan(targetCode) {
		return s
	}
	return StripHan(s)
}
