package logger

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

// SecurityLogger masks credentials and account identifiers before logging.
type SecurityLogger struct {
	*Logger
}

func NewSecurityLogger(l *Logger) *SecurityLogger {
	return &SecurityLogger{Logger: l}
}

var securityLogger *SecurityLogger

// GetSecurityLogger returns a security logger over the global logger.
func GetSecurityLogger() *SecurityLogger {
	if securityLogger == nil {
		securityLogger = NewSecurityLogger(GetLogger())
	}
	return securityLogger
}

var sensitiveKeyParts = []string{"token", "secret", "password", "api_key", "apikey"}

// MaskSecret keeps a short fingerprint so two runs can be compared without
// exposing the value.
func (sl *SecurityLogger) MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	return "secret#" + Fingerprint(value)
}

// MaskCustomerID keeps the last 4 digits of a Google Ads customer id.
func (sl *SecurityLogger) MaskCustomerID(id string) string {
	digits := strings.ReplaceAll(id, "-", "")
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// MaskKeywords summarises a keyword list instead of logging it verbatim.
func (sl *SecurityLogger) MaskKeywords(keywords []string) string {
	switch {
	case len(keywords) == 0:
		return "no_keywords"
	case len(keywords) <= 2:
		return fmt.Sprintf("keywords_count=%d", len(keywords))
	default:
		return fmt.Sprintf("keywords_count=%d,sample=[%s,%s,...]", len(keywords), keywords[0], keywords[1])
	}
}

func (sl *SecurityLogger) MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))
	for key, value := range data {
		lowerKey := strings.ToLower(key)
		switch {
		case isSensitiveKey(lowerKey):
			masked[key] = sl.MaskSecret(fmt.Sprintf("%v", value))
		case strings.Contains(lowerKey, "customer_id"):
			masked[key] = sl.MaskCustomerID(fmt.Sprintf("%v", value))
		case strings.Contains(lowerKey, "keywords"):
			if kws, ok := value.([]string); ok {
				masked[key] = sl.MaskKeywords(kws)
			} else {
				masked[key] = value
			}
		default:
			masked[key] = value
		}
	}
	return masked
}

func isSensitiveKey(key string) bool {
	if key == "client_id" {
		return true
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

var (
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)
	secretRegex = regexp.MustCompile(`(?i)(token|secret|key)([=:]\s*)[a-z0-9._\-/]+`)
)

// MaskLogMessage strips bearer tokens and key=value secrets from free text.
func (sl *SecurityLogger) MaskLogMessage(message string) string {
	masked := bearerRegex.ReplaceAllString(message, "Bearer ***")
	return secretRegex.ReplaceAllString(masked, "${1}${2}***")
}

func (sl *SecurityLogger) SafeInfo(msg string, fields map[string]interface{}) {
	sl.Logger.WithFields(sl.MaskSensitiveData(fields)).Info(sl.MaskLogMessage(msg))
}

func (sl *SecurityLogger) SafeWarn(msg string, fields map[string]interface{}) {
	sl.Logger.WithFields(sl.MaskSensitiveData(fields)).Warn(sl.MaskLogMessage(msg))
}

func (sl *SecurityLogger) SafeError(msg string, err error, fields map[string]interface{}) {
	masked := sl.MaskSensitiveData(fields)
	if err != nil {
		masked["error"] = sl.MaskLogMessage(err.Error())
	}
	sl.Logger.WithFields(masked).Error(sl.MaskLogMessage(msg))
}

// Fingerprint returns the first 8 hex chars of the SHA-256 of value.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum[:4])
}
