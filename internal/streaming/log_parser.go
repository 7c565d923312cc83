package streaming

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel extracts the log level from FFmpeg output. With
// -loglevel level+info FFmpeg prints "[info] message" or
// "[component @ 0x...] [level] message". Returns the level and the
// message with the level bracket stripped, keeping the component.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	bracket := line[1:end]
	if isLogLevel(bracket) {
		return bracket, line[end+2:]
	}

	// [component @ 0x...] [level] message
	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			if nextBracket := rest[1:nextEnd]; isLogLevel(nextBracket) {
				return nextBracket, component + rest[nextEnd+2:]
			}
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

// relayEncoderLog scans encoder output line by line and re-logs each at
// the mapped slog level. Runs until the reader closes.
func relayEncoderLog(r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		level, msg := ParseLogLevel(scanner.Text())
		switch level {
		case "panic", "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "verbose", "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}
}
