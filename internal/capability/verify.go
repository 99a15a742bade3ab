package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Error reports operators the runtime cannot register.
type Error struct {
	// Missing lists the unsupported identifiers in input order.
	Missing []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("not supported by TFLM: %s", strings.Join(e.Missing, ", "))
}

// IsError returns true if err is or wraps a capability *Error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Verify checks that every identifier in required is declared in supported.
// Each missing identifier is logged; the result is a single *Error naming
// all of them, or nil.
func Verify(required []string, supported Set, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var missing []string
	for _, id := range required {
		if supported.Contains(id) {
			continue
		}
		logger.LogAttrs(context.Background(), slog.LevelError, "operator not supported by TFLM",
			slog.String("operator", id))
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		return &Error{Missing: missing}
	}
	return nil
}
