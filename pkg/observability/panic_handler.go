package observability

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a recovered panic turned into an error
type PanicError struct {
	Where string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Where, e.Value)
}

// LogPanic logs a recovered panic value with the current stack
func LogPanic(logger *Logger, where string, value interface{}) {
	logger.WithFields(map[string]interface{}{
		"panic":   value,
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}

// SafeCall runs fn and converts a panic into a *PanicError. Use it for work
// running on goroutines the HTTP recovery middleware cannot see.
//
//	g.Go(func() error {
//		return observability.SafeCall(logger, "dashboard.files", countFiles)
//	})
func SafeCall(logger *Logger, where string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			logger.WithFields(map[string]interface{}{
				"panic":   r,
				"stack":   string(stack),
				"context": where,
			}).Error("PANIC recovered")
			err = &PanicError{Where: where, Value: r, Stack: stack}
		}
	}()
	return fn()
}
