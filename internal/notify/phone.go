package notify

import "strings"

const whatsappPrefix = "whatsapp:"

// NormalizePhone turns raw user or provider input into a +-prefixed number.
// It reports false when nothing usable remains or when the number carries no
// country code and no default is configured.
func (g *Gateway) NormalizePhone(raw string) (string, bool) {
	return normalizePhone(raw, g.cfg.DefaultCountryCode)
}

func normalizePhone(raw, defaultCode string) (string, bool) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, whatsappPrefix)

	value = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '+' {
			return r
		}
		return -1
	}, value)
	if value == "" {
		return "", false
	}
	if strings.HasPrefix(value, "+") {
		return value, true
	}

	code := strings.TrimSpace(defaultCode)
	if code == "" {
		return "", false
	}
	if !strings.HasPrefix(code, "+") {
		code = "+" + code
	}
	return code + value, true
}
