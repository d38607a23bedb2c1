package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
)

const redacted = "[REDACTED]"

// Keys whose values never reach the sink: credentials and payment instrument data.
var secretFragments = []string{"token", "authorization", "password", "secret", "server_key", "api_key", "card", "cvv"}

// Keys whose values are replaced by a salted hash so support can still correlate a learner.
var hashedFragments = []string{"email"}

type redaction struct {
	enabled bool
	salt    string
}

var (
	policyOnce sync.Once
	active     redaction
)

// policy reads LOG_REDACTION_ENABLED and LOG_HASH_SALT once per process.
func policy() redaction {
	policyOnce.Do(func() {
		active = redaction{enabled: true, salt: strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))}
		switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			active.enabled = false
		}
	})
	return active
}

func (r redaction) apply(kv []any) []any {
	if !r.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key := stringify(kv[i])
		out = append(out, key, r.value(strings.ToLower(key), kv[i+1]))
	}
	if len(kv)%2 == 1 {
		out = append(out, kv[len(kv)-1])
	}
	return out
}

func (r redaction) value(key string, v any) any {
	switch {
	case matchesAny(key, secretFragments):
		return redacted
	case matchesAny(key, hashedFragments):
		return r.hash(v)
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = r.value(strings.ToLower(strings.TrimSpace(k)), inner)
		}
		return out
	case string:
		if looksLikeJWT(t) {
			return redacted
		}
	}
	return v
}

func (r redaction) hash(v any) string {
	raw := stringify(v)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(r.salt + strings.ToLower(raw)))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}

func matchesAny(key string, frags []string) bool {
	for _, f := range frags {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
