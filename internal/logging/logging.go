// Package logging provides the default LoggingCallbacks (§6)
// implementation. Grounded on the teacher's
// pkg/mcast/definition/default_logger.go (a small wrapper adding
// level prefixes over the standard logger) and on the direct
// prometheus/common/log import already present in the teacher's
// pkg/mcast/core/transport.go — both are carried forward here rather
// than reached past, per SPEC_FULL.md's AMBIENT STACK section.
package logging

import (
	"fmt"
	"sync"
	"time"

	plog "github.com/prometheus/common/log"

	"github.com/jabolina/go-lanmsg/internal/types"
)

// TimestampFunc is the LoggingCallbacks get_timestamp hook (§6).
type TimestampFunc func() string

func defaultTimestamp() string {
	return time.Now().Format("15:04:05.000")
}

// sharedState is the part every category-scoped logger shares: the
// debug flag, timestamp callback and UI sink all apply repo-wide, not
// per category, so ToggleDebug on any scoped Logger affects them all.
type sharedState struct {
	mutex     sync.RWMutex
	debug     bool
	timestamp TimestampFunc
	onDisplay func(prefix, body string)
}

// Default is the default Logger implementation: a thin wrapper over
// prometheus/common/log with category tagging, a runtime-settable
// debug flag and an optional UI sink for "display_debug_log".
type Default struct {
	shared   *sharedState
	category types.Category
}

// NewDefault builds the root logger, category GENERAL.
func NewDefault() *Default {
	return &Default{
		shared: &sharedState{
			timestamp: defaultTimestamp,
		},
		category: types.CategoryGeneral,
	}
}

// SetDisplaySink wires the UI's debug-output destination.
func (d *Default) SetDisplaySink(sink func(prefix, body string)) {
	d.shared.mutex.Lock()
	defer d.shared.mutex.Unlock()
	d.shared.onDisplay = sink
}

// SetTimestampFunc overrides the get_timestamp callback.
func (d *Default) SetTimestampFunc(fn TimestampFunc) {
	d.shared.mutex.Lock()
	defer d.shared.mutex.Unlock()
	if fn != nil {
		d.shared.timestamp = fn
	}
}

func (d *Default) prefix(severity string) string {
	d.shared.mutex.RLock()
	defer d.shared.mutex.RUnlock()
	return fmt.Sprintf("[%s][%s][%s]", d.shared.timestamp(), severity, d.category)
}

func (d *Default) emit(severity, body string) {
	line := fmt.Sprintf("%s %s", d.prefix(severity), body)
	switch severity {
	case "ERROR":
		plog.Error(line)
	case "WARN":
		plog.Warn(line)
	case "DEBUG":
		plog.Debug(line)
	default:
		plog.Info(line)
	}

	d.shared.mutex.RLock()
	sink := d.shared.onDisplay
	d.shared.mutex.RUnlock()
	if sink != nil {
		sink(d.prefix(severity), body)
	}
}

func (d *Default) Info(v ...interface{})  { d.emit("INFO", fmt.Sprint(v...)) }
func (d *Default) Warn(v ...interface{})  { d.emit("WARN", fmt.Sprint(v...)) }
func (d *Default) Error(v ...interface{}) { d.emit("ERROR", fmt.Sprint(v...)) }

func (d *Default) Infof(format string, v ...interface{})  { d.emit("INFO", fmt.Sprintf(format, v...)) }
func (d *Default) Warnf(format string, v ...interface{})  { d.emit("WARN", fmt.Sprintf(format, v...)) }
func (d *Default) Errorf(format string, v ...interface{}) { d.emit("ERROR", fmt.Sprintf(format, v...)) }

func (d *Default) Debug(v ...interface{}) {
	if d.debugEnabled() {
		d.emit("DEBUG", fmt.Sprint(v...))
	}
}

func (d *Default) Debugf(format string, v ...interface{}) {
	if d.debugEnabled() {
		d.emit("DEBUG", fmt.Sprintf(format, v...))
	}
}

func (d *Default) debugEnabled() bool {
	d.shared.mutex.RLock()
	defer d.shared.mutex.RUnlock()
	return d.shared.debug
}

func (d *Default) ToggleDebug(value bool) bool {
	d.shared.mutex.Lock()
	defer d.shared.mutex.Unlock()
	d.shared.debug = value
	return d.shared.debug
}

// WithCategory returns a logger scoped to category, sharing the debug
// flag, timestamp func and display sink with the parent.
func (d *Default) WithCategory(category types.Category) types.Logger {
	return &Default{
		shared:   d.shared,
		category: category,
	}
}
