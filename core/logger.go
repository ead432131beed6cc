package core

// Logger is implemented by the services/logger package.
// Accepted args: error, map[string]interface{}, Actor (reported as the current person).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
