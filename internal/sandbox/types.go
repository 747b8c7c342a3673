package sandbox

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/config"
)

var (
	ErrClosed  = errors.New("sandbox closed")
	ErrTimeout = errors.New("script execution timed out")
)

// Config bounds script execution.
type Config struct {
	Timeout       time.Duration // Per evaluation and per callback; 0 disables
	MaxCallStack  int           // goja call stack limit; 0 keeps the goja default
	EnableConsole bool          // Expose console.*
}

// Result holds the outcome of one script evaluation.
type Result struct {
	Value    interface{}
	Console  []LogEntry
	Duration time.Duration
}

// LogEntry is one captured console call.
type LogEntry struct {
	Level   string
	Message string
	Time    time.Time
}

func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
	}
}

// FromConfig converts the environment configuration.
func FromConfig(c config.SandboxConfig) Config {
	return Config{
		Timeout:       c.Timeout,
		MaxCallStack:  c.MaxCallStack,
		EnableConsole: c.EnableConsole,
	}
}
