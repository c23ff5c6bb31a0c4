package serendipity

import "unicode/utf16"

// IsChinese reports whether more than 30% of the text, measured in UTF-16 code units, is CJK
// unified ideographs in U+4E00..U+9FA5.
func IsChinese(text string) bool {
	var han, total int
	for _, r := range text {
		total += utf16.RuneLen(r)
		if r >= 0x4E00 && r <= 0x9FA5 {
			han++
		}
	}
	if total == 0 {
		return false
	}
	return float64(han)/float64(total) > 0.3
}
