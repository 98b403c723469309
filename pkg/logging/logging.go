package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger hands out per-component logrus entries with a shared level/output.
type Logger struct {
	level  string
	output io.Writer
}

func New(level string, output io.Writer) *Logger {
	return &Logger{level: level, output: output}
}

// Get returns an entry tagged with the component name.
func (l *Logger) Get(component string) *logrus.Entry {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(l.output)

	return log.WithFields(logrus.Fields{
		"component": component,
	})
}
