package app

import (
	"fmt"
	"log/slog"
	"strings"

	"radionode/hal"
	"radionode/nodeos/kernel"
)

// installPanicHandler reports the first task failure on the board console,
// where it survives a broken log pipeline, and through the structured log.
func installPanicHandler(h hal.HAL, log *slog.Logger) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		log.Error("panic", slog.String("task", info.Task), slog.String("value", fmt.Sprint(info.Value)))

		l := h.Logger()
		if l == nil {
			return
		}
		for _, line := range panicLines(info) {
			l.WriteLineString(line)
		}
	})
}

func panicLines(info kernel.PanicInfo) []string {
	task := info.Task
	if task == "" {
		task = "-"
	}
	lines := []string{
		"Node Panic:",
		"task: " + task,
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
