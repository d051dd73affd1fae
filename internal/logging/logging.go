// Package logging configures the process-wide logrus logger and provides the
// throttle used to keep per-frame warnings from flooding the log.
package logging

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Setup sets the global logrus level and formatter. Output defaults to
// stderr when w is nil.
func Setup(level string, w io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if w != nil {
		logrus.SetOutput(w)
	}
	return nil
}

// Every reports whether at least period has passed since the last time it
// returned true for the same timestamp holder. Safe for concurrent use.
func Every(last *atomic.Int64, period time.Duration) bool {
	if last == nil || period <= 0 {
		return true
	}
	now := time.Now().UnixNano()
	for {
		prev := last.Load()
		if prev != 0 && time.Duration(now-prev) < period {
			return false
		}
		if last.CompareAndSwap(prev, now) {
			return true
		}
	}
}
