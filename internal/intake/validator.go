package intake

import (
	"fmt"
	"strings"
)

// Rules configures file acceptance for the intake pipeline. Accepted entries
// are literal extensions (".pdf"), exact MIME types ("application/pdf") or
// wildcard MIME patterns ("image/*").
type Rules struct {
	MaxSizeBytes int64    `yaml:"maxSizeBytes"`
	Accepted     []string `yaml:"accepted"`
}

// ValidationError is reported synchronously at selection time. Files that
// fail validation never reach the network.
type ValidationError struct {
	Reason  string // "size" or "type"
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks a candidate file against the configured rules. It is a pure
// function: the same inputs always produce the same result and nothing is
// mutated. Size is checked first so an oversized file of an accepted type
// still reports the size error. The cap is exclusive: permitted sizes are
// strictly below MaxSizeBytes.
func Validate(rules Rules, name string, sizeBytes int64, mimeType string) error {
	if sizeBytes >= rules.MaxSizeBytes {
		return &ValidationError{
			Reason:  "size",
			Message: fmt.Sprintf("file must be smaller than %s", formatSize(rules.MaxSizeBytes)),
		}
	}

	ext := extensionOf(name)
	mime := strings.ToLower(strings.TrimSpace(mimeType))

	for _, accepted := range rules.Accepted {
		accepted = strings.ToLower(strings.TrimSpace(accepted))
		switch {
		case accepted == "":
			continue
		case strings.HasPrefix(accepted, "."):
			if ext != "" && ext == accepted {
				return nil
			}
		case strings.HasSuffix(accepted, "/*"):
			if mime != "" && strings.HasPrefix(mime, strings.TrimSuffix(accepted, "*")) {
				return nil
			}
		default:
			if mime != "" && mime == accepted {
				return nil
			}
		}
	}

	return &ValidationError{
		Reason:  "type",
		Message: fmt.Sprintf("file type not accepted (allowed: %s)", strings.Join(rules.Accepted, ", ")),
	}
}

// extensionOf returns the lowercased trailing ".ext" segment, or "" when the
// name has no extension.
func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx:])
}

func formatSize(bytes int64) string {
	const mb = 1024 * 1024
	if bytes >= mb && bytes%mb == 0 {
		return fmt.Sprintf("%dMB", bytes/mb)
	}
	return fmt.Sprintf("%d bytes", bytes)
}
