package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

//Logger interface that allows abstracting away the concrete logger implementation we are using
type Logger interface {
	//Fatal causes the application to terminate with the given error message
	Fatal(args ...interface{})
	//Fatalf causes the application to terminate with the given error message
	Fatalf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	//Print makes the logger usable as sink for chi's request logger
	Print(args ...interface{})

	//WithField returns a logger that adds key to every entry
	WithField(key string, value interface{}) Logger
}

//NewLogger creates a JSON logger writing to stderr. The level is read from LOG_LEVEL.
func NewLogger() Logger {
	return NewLoggerTo(os.Stderr, os.Getenv("LOG_LEVEL"))
}

//NewLoggerTo creates a JSON logger writing to out at the given level, or info if the
//level can not be parsed
func NewLoggerTo(out io.Writer, level string) Logger {
	impl := logrus.New()
	impl.SetOutput(out)
	impl.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})

	if lvl, err := logrus.ParseLevel(level); err == nil {
		impl.SetLevel(lvl)
	}

	return &logger{entry: logrus.NewEntry(impl).WithField("service", "energy-dashboard")}
}

type logger struct {
	entry *logrus.Entry
}

func (l *logger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logger) Fatal(args ...interface{}) {
	l.entry.Fatal(args...)
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logger) Print(args ...interface{}) {
	l.entry.Info(args...)
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, value)}
}
