package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/robfig/cron/v3"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

/*
	Log rotation schedule

	"0 30 * * * *"             Every hour on the half hour
	"@hourly"                  Every hour
	"@every 1h30m"             Every hour thirty
	@daily, @midnight, @weekly, @monthly
*/

type Config struct {
	Console              bool          `json:"console" yaml:"console"`
	Filename             string        `json:"filename" yaml:"filename"`
	Append               bool          `json:"append" yaml:"append"`
	RotateSchedule       string        `json:"rotateSchedule" yaml:"rotateSchedule"`
	MaxSize              int           `json:"maxSize" yaml:"maxSize"`
	MaxBackups           int           `json:"maxBackups" yaml:"maxBackups"`
	MaxAge               int           `json:"maxAge" yaml:"maxAge"`
	Compress             bool          `json:"compress" yaml:"compress"`
	UTC                  bool          `json:"utc" yaml:"utc"`
	Levels               []LevelConfig `json:"levels" yaml:"levels"`
	PrefixWidth          int           `json:"prefixWidth" yaml:"prefixWidth"`
	EnableSourceLocation bool          `json:"enableSourceLocation" yaml:"enableSourceLocation"`
	DefaultLevel         string        `json:"defaultLevel" yaml:"defaultLevel"`
}

type LevelConfig struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Level   string `json:"level" yaml:"level"`
}

// PresetConfigStderr writes everything from INFO up to stderr,
// which keeps stdout free for command results.
var PresetConfigStderr = Config{
	Filename:     "-",
	PrefixWidth:  12,
	DefaultLevel: "INFO",
}

// PresetConfigDiscard drops every log line.
var PresetConfigDiscard = Config{
	Filename:     ".",
	DefaultLevel: "ERROR",
}

var (
	rotateCron     *cron.Cron
	defaultWriter  = []*logWriter{consoleWriter()}
	defaultWriterM sync.RWMutex
)

// Configure replaces the process wide log settings.
// Loggers obtained by GetLog after this call use the new writers.
func Configure(cfg *Config) error {
	for _, c := range cfg.Levels {
		SetLevel(c.Pattern, ParseLogLevel(c.Level))
	}
	SetDefaultPrefixWidth(cfg.PrefixWidth)
	SetDefaultLevel(ParseLogLevel(cfg.DefaultLevel))
	SetDefaultEnableSourceLocation(cfg.EnableSourceLocation)

	writers, err := openWriters(cfg)
	if err != nil {
		return err
	}
	defaultWriterM.Lock()
	defaultWriter = writers
	defaultWriterM.Unlock()
	return nil
}

func openWriters(cfg *Config) ([]*logWriter, error) {
	switch cfg.Filename {
	case "", ".":
		return []*logWriter{}, nil
	case "-":
		return []*logWriter{consoleWriter()}, nil
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  !cfg.UTC,
	}
	if !cfg.Append {
		if err := lj.Rotate(); err != nil {
			return nil, fmt.Errorf("log file %s, %w", cfg.Filename, err)
		}
	}
	if cfg.RotateSchedule != "" {
		if rotateCron == nil {
			rotateCron = cron.New()
			rotateCron.Start()
		}
		if _, err := rotateCron.AddFunc(cfg.RotateSchedule, func() { lj.Rotate() }); err != nil {
			return nil, fmt.Errorf("log rotate schedule %q, %w", cfg.RotateSchedule, err)
		}
	}
	ret := []*logWriter{{Writer: lj, isTerm: false}}
	if cfg.Console {
		ret = append(ret, consoleWriter())
	}
	return ret, nil
}

func GetLog(name string) Log {
	defaultWriterM.RLock()
	underlying := defaultWriter
	defaultWriterM.RUnlock()
	return &levelLogger{
		name:         name,
		level:        GetLevel(name),
		underlying:   underlying,
		prefixWidth:  DefaultPrefixWidth(),
		enableSrcLoc: enableSourceLocationDefault,
	}
}

// NewLog returns a logger that writes plain lines to the writer,
// mostly useful in tests.
func NewLog(name string, writer io.Writer) Log {
	return &levelLogger{
		name:         name,
		level:        GetLevel(name),
		underlying:   []*logWriter{{Writer: writer, isTerm: false}},
		prefixWidth:  DefaultPrefixWidth(),
		enableSrcLoc: enableSourceLocationDefault,
	}
}

// consoleWriter writes to stderr, colored only when it is a terminal.
func consoleWriter() *logWriter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return &logWriter{Writer: colorable.NewColorableStderr(), isTerm: true}
	}
	return &logWriter{Writer: os.Stderr, isTerm: false}
}

type logWriter struct {
	io.Writer
	isTerm bool
}
