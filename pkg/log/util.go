package log

import (
	"fmt"

	"go.uber.org/zap"
)

// toFields converts logr-style variadic arguments into zap fields.
//
// Accepted shapes, in any mix: a ready zap.Field, a bare error (logged under
// "error"), or a string key followed by its value. A trailing value without
// a key is kept under "arg#<index>"; a non-string key is kept under
// "invalid_key_<n>" together with its value so nothing is silently lost.
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)

	for i := 0; i < len(args); {
		switch v := args[i].(type) {
		case zap.Field:
			fields = append(fields, v)
			i++
			continue
		case error:
			fields = append(fields, zap.Error(v))
			i++
			continue
		}

		if i == len(args)-1 {
			fields = append(fields, zap.Any(fmt.Sprintf("arg#%d", i), args[i]))
			break
		}

		key, val := args[i], args[i+1]
		i += 2

		keyStr, ok := key.(string)
		if !ok {
			fields = append(fields, zap.Any(fmt.Sprintf("invalid_key_%d", i/2), map[string]any{
				"key":   key,
				"value": val,
			}))
			continue
		}

		fields = append(fields, field(keyStr, val))
	}

	return fields
}

func field(key string, val any) zap.Field {
	switch v := val.(type) {
	case error:
		return zap.NamedError(key, v)
	case fmt.Stringer:
		return zap.Stringer(key, v)
	case []byte:
		return zap.Binary(key, v)
	default:
		// zap.Any picks the typed constructor for primitives, durations and times.
		return zap.Any(key, v)
	}
}
