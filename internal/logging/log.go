// Package logging is a thin leveled front end over the standard library
// logger. By default messages go to stderr; SetLogger redirects output to a
// size/age-capped rotating file so long interactive sessions don't grow an
// unbounded log.
package logging

import (
	"fmt"
	"log"

	"github.com/natefinch/lumberjack"
)

// Config describes the optional rotating log file.
type Config struct {
	// Logfile is the path of the log file. Empty means log to stderr.
	Logfile string `yaml:"logfile"`

	// MaxSize is the maximum size of the log file in megabytes before it
	// is rotated.
	MaxSize int `yaml:"maxLogSize"`

	// MaxAge is the maximum number of days to retain rotated files.
	MaxAge int `yaml:"maxLogAge"`
}

var fileSink *lumberjack.Logger

// SetLogger routes all subsequent log output according to the config.
// A nil config or empty Logfile leaves output on stderr.
func SetLogger(c *Config) {
	if c == nil || c.Logfile == "" {
		return
	}
	fileSink = &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	log.SetOutput(fileSink)
}

// Infof logs a formatted message at INFO level.
func Infof(format string, args ...interface{}) {
	log.Printf(" INFO %s", fmt.Sprintf(format, args...))
}

// Warningf logs a formatted message at WARNING level.
func Warningf(format string, args ...interface{}) {
	log.Printf(" WARN %s", fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at ERROR level.
func Errorf(format string, args ...interface{}) {
	log.Printf(" ERROR %s", fmt.Sprintf(format, args...))
}

// Shutdown closes the rotating file sink if one was installed.
func Shutdown() {
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
}
