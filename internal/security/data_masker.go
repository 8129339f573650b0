package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRe      = regexp.MustCompile(`(?i)email|邮箱`)
	phoneRe      = regexp.MustCompile(`(?i)phone|mobile|电话|手机`)
	idCardRe     = regexp.MustCompile(`(?i)id_card|id_number|身份证`)
	creditCardRe = regexp.MustCompile(`(?i)credit_card|card_number|银行卡`)
	fullMaskRe   = regexp.MustCompile(`(?i)password|secret|token|api_key|access_key|private_key|密码`)
)

// DataMasker hides sensitive tool-call argument values before they are
// written to audit logs. Keys are matched by name; nested objects are masked
// recursively.
type DataMasker struct {
	sensitiveKeys []string
}

func NewDataMasker(sensitiveKeys []string) *DataMasker {
	return &DataMasker{sensitiveKeys: sensitiveKeys}
}

// MaskArguments returns a masked copy; args is not modified
func (m *DataMasker) MaskArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for key, val := range args {
		switch v := val.(type) {
		case map[string]any:
			out[key] = m.MaskArguments(v)
		default:
			if m.isSensitive(key) {
				out[key] = m.maskValue(key, fmt.Sprintf("%v", val))
			} else {
				out[key] = val
			}
		}
	}
	return out
}

func (m *DataMasker) isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range m.sensitiveKeys {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return emailRe.MatchString(key) || phoneRe.MatchString(key) ||
		idCardRe.MatchString(key) || creditCardRe.MatchString(key) || fullMaskRe.MatchString(key)
}

func (m *DataMasker) maskValue(key, val string) string {
	switch {
	case emailRe.MatchString(key):
		return maskEmail(val)
	case phoneRe.MatchString(key):
		return maskTail(val, "***-****-")
	case creditCardRe.MatchString(key):
		return maskTail(val, "****-****-****-")
	case idCardRe.MatchString(key):
		return maskTail(val, "**************")
	default:
		return "***"
	}
}

// maskEmail: "zhang.san@example.com" → "zh***@***.com"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	visible := min(2, len(local))
	ext := domain[strings.LastIndex(domain, ".")+1:]
	return fmt.Sprintf("%s***@***.%s", local[:visible], ext)
}

// maskTail keeps the last four digits (or X, for Chinese ID numbers)
func maskTail(val, prefix string) string {
	var digits strings.Builder
	for _, c := range val {
		if (c >= '0' && c <= '9') || c == 'X' || c == 'x' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()
	if len(d) < 4 {
		return prefix + "****"
	}
	return prefix + d[len(d)-4:]
}
