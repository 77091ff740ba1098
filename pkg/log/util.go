package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// toFields turns alternating keys and values into zap fields. A zap.Field
// or a bare error may stand in place of a pair. Malformed input is kept
// under a marker key instead of being dropped.
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case zap.Field:
			fields = append(fields, v)
			continue
		case error:
			fields = append(fields, zap.Error(v))
			continue
		}

		if i == len(args)-1 {
			fields = append(fields, zap.Any(fmt.Sprintf("arg#%d", i), args[i]))
			break
		}

		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("invalid_key_%d(%v)", i, args[i])
		}
		fields = append(fields, field(key, args[i+1]))
		i++
	}

	return fields
}

func field(key string, val any) zap.Field {
	switch v := val.(type) {
	case time.Duration:
		return zap.Duration(key, v)
	case time.Time:
		return zap.Time(key, v)
	case error:
		return zap.NamedError(key, v)
	case fmt.Stringer:
		return zap.Stringer(key, v)
	default:
		return zap.Any(key, v)
	}
}
