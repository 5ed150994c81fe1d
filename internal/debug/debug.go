package debug

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (bring-up, accepted commands)
	LevelLive    = 2 // Live info (telemetry, actuator changes)
	LevelVerbose = 3 // Verbose (configuration details, steps)
	LevelTrace   = 4 // Trace (GPIO, very low level)
)

var (
	level  int
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (bring-up, accepted and rejected commands)
// 2 = live info (telemetry lines, actuator changes)
// 3 = verbose (configuration details, steps)
// 4 = trace (GPIO, very low level)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New()
		logger.SetOutput(os.Stdout)
		logger.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000000",
		})
		logger.SetLevel(logrusLevel(level))
	} else {
		logger = nil
	}
}

// logrusLevel maps a debug level onto the logrus severity that lets its
// messages through.
func logrusLevel(l int) log.Level {
	switch {
	case l >= LevelTrace:
		return log.TraceLevel
	case l >= LevelVerbose:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}

// SetOutput redirects debug output (e.g. to the serial console as well as stdout).
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Infof(format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelInfo && logger != nil {
		logger.Info("═══════════════════════════════════════")
		logger.Infof("  %s", title)
		logger.Info("═══════════════════════════════════════")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.WithField("stream", "live").Infof(format, args...)
	}
}

// Drive prints an actuator change (level 2).
func Drive(axis string, level int, direction string) {
	if IsEnabled(LevelLive) && logger != nil {
		logger.WithFields(log.Fields{
			"axis":      axis,
			"direction": direction,
		}).Infof("Motor %s: drive %d%%", axis, level)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Debugf("  %s", name)
		logger.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf("Step %d: %s", num, description)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Infof("  %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, GPIO).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Tracef(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.WithFields(log.Fields{
			"op":  operation,
			"pin": pin,
		}).Tracef("value=%v", value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.WithError(err).Error("error")
	}
}

// Fatalf logs the message regardless of the debug level and exits.
func Fatalf(format string, args ...interface{}) {
	l := logger
	if l == nil {
		l = log.StandardLogger()
	}
	l.Fatalf(format, args...)
}
