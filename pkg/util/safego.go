// Package util holds small helpers shared by the bridge binaries.
package util

import (
	"runtime/debug"

	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

// SafeGo runs fn in a new goroutine and logs (instead of crashing on) a panic.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Get().Error("goroutine panicked",
					logger.FieldError, r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}

// Truncate shortens s to n bytes and appends "..." when it was cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
