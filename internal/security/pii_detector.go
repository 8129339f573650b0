package security

import (
	"strings"
)

// PIIDetector flags messages that mention sensitive personal data, such as
// 密码 or 身份证, so they can be refused before any oracle sees them.
type PIIDetector struct {
	keywords []string
}

func NewPIIDetector(keywords []string) *PIIDetector {
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lower = append(lower, k)
		}
	}
	return &PIIDetector{keywords: lower}
}

// Detect returns true and the first matched keyword
func (d *PIIDetector) Detect(text string) (bool, string) {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true, kw
		}
	}
	return false, ""
}

// DetectMessages checks every message and stops at the first match
func (d *PIIDetector) DetectMessages(texts ...string) (bool, string) {
	for _, t := range texts {
		if found, kw := d.Detect(t); found {
			return true, kw
		}
	}
	return false, ""
}
