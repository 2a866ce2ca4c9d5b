// Package logging wraps logrus with the context-scoped logger convention used
// throughout the coordinator: call Ctx(ctx) to get a logger carrying whatever
// fields the request handler attached to the context, or use the
// package-level functions when no context is available.
package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var base = logrus.New()

// Entry is a thin wrapper around *logrus.Entry that adds the WithStack
// helper the rest of the codebase expects when logging a wrapped error.
type Entry struct {
	*logrus.Entry
}

func newEntry() *Entry {
	return &Entry{Entry: logrus.NewEntry(base)}
}

// WithStack attaches the error to the entry under the "error" field. Unlike
// a true stack-capturing logger, it relies on %+v on wrapped errors to carry
// their own context, which is how errors are constructed throughout this
// module (fmt.Errorf("...: %w", err)).
func (e *Entry) WithStack(err error) *Entry {
	return &Entry{Entry: e.Entry.WithField("error", err)}
}

// Ctx returns the logger attached to ctx by WithContext, or the package
// default logger if none was attached.
func Ctx(ctx context.Context) *Entry {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*Entry); ok {
			return e
		}
	}
	return newEntry()
}

// WithContext returns a context carrying e, retrievable later via Ctx.
func WithContext(ctx context.Context, e *Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

// SetLevel sets the package-wide minimum log level.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

func DefaultLogger() *logrus.Logger { return base }

func Debug(args ...interface{})                 { newEntry().Debug(args...) }
func Debugf(format string, args ...interface{}) { newEntry().Debugf(format, args...) }
func Info(args ...interface{})                  { newEntry().Info(args...) }
func Infof(format string, args ...interface{})  { newEntry().Infof(format, args...) }
func Warn(args ...interface{})                  { newEntry().Warn(args...) }
func Warnf(format string, args ...interface{})  { newEntry().Warnf(format, args...) }
func Error(args ...interface{})                 { newEntry().Error(args...) }
func Errorf(format string, args ...interface{}) { newEntry().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { newEntry().Fatalf(format, args...) }
func Panicf(format string, args ...interface{}) { newEntry().Panicf(format, args...) }
