package common

import (
	"fmt"
	"strings"
)

// NormalizeHexColor normalizes and validates a CSS hex color.
//
// Office markup wants colors as six uppercase hex digits without the leading
// hash, so the short #abc form is expanded and case is fixed here.
func NormalizeHexColor(in string) (string, error) {
	s := strings.TrimSpace(in)
	if s == "" {
		return "", nil
	}

	s = strings.ToUpper(strings.TrimPrefix(s, "#"))
	if len(s) == 3 {
		var b strings.Builder
		for i := 0; i < 3; i++ {
			b.WriteByte(s[i])
			b.WriteByte(s[i])
		}
		s = b.String()
	}

	if len(s) != 6 {
		return "", fmt.Errorf("hex color must have 3 or 6 digits, got %q", in)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isDigit := c >= '0' && c <= '9'
		isHex := c >= 'A' && c <= 'F'
		if !isDigit && !isHex {
			return "", fmt.Errorf("hex color must be 0-9A-F only, got %q", c)
		}
	}

	return s, nil
}
