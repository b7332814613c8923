package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup points the standard logger at stdout, or at a rotating file plus
// stdout when path is set. The returned writer is handed to gin.
func Setup(path string) io.Writer {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if path == "" {
		log.SetOutput(os.Stdout)
		return os.Stdout
	}

	w := io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	log.SetOutput(w)
	return w
}

// Printf is the default loggerf injected into services.
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Discard is a loggerf that drops everything.
func Discard(string, ...interface{}) {}

// RotatingFile opens an append-only rotating log used by event consumers.
func RotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 10,
		MaxAge:     90,
	}
}
