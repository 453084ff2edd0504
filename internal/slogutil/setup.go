package slogutil

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunLogTimeFormat stamps per-run log file names.
const RunLogTimeFormat = "2006-01-02T150405.000000"

// RunLogOptions configure NewRunLogger.
type RunLogOptions struct {
	// Console receives records at Level. Nil disables console output.
	Console io.Writer
	Level   slog.Level
	// JSON switches the console to slog's JSON handler.
	JSON bool

	// Dir holds the per-run log file. Empty disables the file.
	Dir        string
	Prefix     string
	MaxSize    string
	MaxBackups int

	// Now defaults to time.Now.
	Now func() time.Time
}

// RunLog owns the file side of a run logger.
type RunLog struct {
	Path   string
	closer io.Closer
}

// Close flushes and closes the log file.
func (l *RunLog) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// NewRunLogger builds the logger of one conversion run: console output at
// the requested level, teed with a DEBUG file <Dir>/<Prefix>_<time>.log.
func NewRunLogger(opts RunLogOptions) (*slog.Logger, *RunLog, error) {
	var handlers []slog.Handler
	if opts.Console != nil {
		consoleOpts := &slog.HandlerOptions{Level: opts.Level}
		if opts.JSON {
			handlers = append(handlers, slog.NewJSONHandler(opts.Console, consoleOpts))
		} else {
			handlers = append(handlers, NewLineHandler(opts.Console, "", consoleOpts))
		}
	}

	runLog := &RunLog{}
	if opts.Dir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}

		name := now().Format(RunLogTimeFormat) + ".log"
		if opts.Prefix != "" {
			name = opts.Prefix + "_" + name
		}
		runLog.Path = filepath.Join(opts.Dir, name)

		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileLogger, closer, err := NewFileLoggerWithRotation(runLog.Path, slog.LevelDebug, opts.MaxSize, opts.MaxBackups)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		runLog.closer = closer
		handlers = append(handlers, fileLogger.Handler())
	}

	if len(handlers) == 0 {
		return NewDiscardLogger(), runLog, nil
	}
	return slog.New(NewTeeHandler(handlers...)), runLog, nil
}

// NewestLog returns the most recently modified *.log file in dir.
func NewestLog(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var logs []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		logs = append(logs, candidate{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(logs) == 0 {
		return "", os.ErrNotExist
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].mod.Equal(logs[j].mod) {
			return logs[i].path > logs[j].path
		}
		return logs[i].mod.After(logs[j].mod)
	})
	return logs[0].path, nil
}

// TailLines returns the last n lines of the file at path.
func TailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}
