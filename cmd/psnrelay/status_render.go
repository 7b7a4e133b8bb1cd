package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"psnrelay/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderStatus lays out a running daemon's status as sections of status lines.
func renderStatus(status api.StatusResponse, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Relay", colorize)...)
	lines = append(lines,
		renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize),
		renderStatusLine("Uptime", statusInfo, formatUptime(status.UptimeSeconds), colorize),
		renderStatusLine("Mode", statusInfo, displayMode(status.Mode), colorize),
		renderStatusLine("Modes", statusInfo, displayModes(status.Modes), colorize),
		renderStatusLine("Trackers", statusInfo, fmt.Sprintf("%d", status.Trackers), colorize),
	)
	if status.ConfigPath != "" {
		lines = append(lines, renderStatusLine("Config", statusInfo, status.ConfigPath, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Clients", colorize)...)
	clientKind := statusInfo
	if status.Hub.Evicted > 0 {
		clientKind = statusWarn
	}
	lines = append(lines,
		renderStatusLine("Sessions", statusInfo, fmt.Sprintf("%d", status.Hub.Sessions), colorize),
		renderStatusLine("Broadcasts", statusInfo, fmt.Sprintf("%d (%d frames)", status.Hub.Broadcasts, status.Hub.Frames), colorize),
		renderStatusLine("Evicted", clientKind, fmt.Sprintf("%d", status.Hub.Evicted), colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("PSN Output", colorize)...)
	if b := status.Broadcaster; b != nil {
		kind := statusOK
		if b.SendErrors > 0 {
			kind = statusWarn
		}
		lines = append(lines,
			renderStatusLine("Destination", statusInfo, b.Destination, colorize),
			renderStatusLine("Packets", kind, fmt.Sprintf("%d data, %d info over %d ticks", b.Packets, b.InfoPackets, b.Ticks), colorize),
			renderStatusLine("Send errors", kind, fmt.Sprintf("%d", b.SendErrors), colorize),
		)
	} else {
		lines = append(lines, renderStatusLine("Broadcaster", statusError, "not running", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("OSC Feed", colorize)...)
	if f := status.Feed; f != nil {
		kind := statusOK
		if f.Dropped > 0 {
			kind = statusWarn
		}
		lines = append(lines,
			renderStatusLine("Listening", statusInfo, f.Address, colorize),
			renderStatusLine("Messages", kind, fmt.Sprintf("%d accepted, %d ignored, %d dropped", f.Accepted, f.Ignored, f.Dropped), colorize),
		)
	} else {
		lines = append(lines, renderStatusLine("Feed", statusInfo, "disabled", colorize))
	}
	return lines
}

func formatUptime(seconds float64) string {
	return (time.Duration(seconds) * time.Second).Round(time.Second).String()
}

// displayMode turns a preset name such as "scene_and_crowd" into "Scene And Crowd".
func displayMode(mode string) string {
	mode = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(mode))
	if mode == "" {
		return "-"
	}
	return cases.Title(language.English).String(mode)
}

func displayModes(modes []string) string {
	if len(modes) == 0 {
		return "-"
	}
	names := make([]string, 0, len(modes))
	for _, mode := range modes {
		names = append(names, displayMode(mode))
	}
	return strings.Join(names, ", ")
}
