package middleware

import log "github.com/sirupsen/logrus"

// LeveledLogger is the fasthttp.Logger of a server, Name is attached to
// every line as the "server" field.
type LeveledLogger struct {
	Level log.Level
	Name  string
}

func (l LeveledLogger) Printf(format string, args ...interface{}) {
	entry := log.NewEntry(log.StandardLogger())
	if l.Name != "" {
		entry = entry.WithField("server", l.Name)
	}
	entry.Logf(l.Level, format, args...)
}
