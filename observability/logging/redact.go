package logging

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// publicKeys are emitted verbatim. Salts, amounts and accounts are not
// listed, so owners of private escrows never show up in logs.
var publicKeys = map[string]struct{}{
	"method":     {},
	"request_id": {},
	"commitment": {},
	"token":      {},
	"code":       {},
	"status":     {},
	"reason":     {},
	"error":      {},
	"timeout":    {},
	"enabled":    {},
	"paused":     {},
	"level":      {},
	"id":         {},
}

func isPublic(key string) bool {
	_, ok := publicKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns value under key, or RedactedValue when key is not public.
// Empty values pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || isPublic(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// ParamAttrs renders a JSON-RPC parameter object for logging, one attribute
// per field in key order, masked through MaskField. Nested objects are
// masked whole. Anything that is not a JSON object yields nil.
func ParamAttrs(raw []byte) []any {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, MaskField(key, scalar(fields[key])))
	}
	return out
}

func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return RedactedValue
	}
	return trimmed
}
