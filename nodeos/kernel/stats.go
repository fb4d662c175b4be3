package kernel

import (
	"log/slog"
	"slices"
	"sync"
)

// TaskStats is the snapshot a task reports about itself.
type TaskStats struct {
	StackSize uint32
	Priority  uint8
	Ticks     uint64
	Events    uint64
}

// Statistics collects the latest TaskStats of every task by name.
type Statistics struct {
	mu    sync.Mutex
	tasks map[string]TaskStats
}

var systemStatistics = &Statistics{}

// SystemStatistics returns the process-wide collector.
func SystemStatistics() *Statistics { return systemStatistics }

func (s *Statistics) Report(name string, st TaskStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks == nil {
		s.tasks = make(map[string]TaskStats)
	}
	s.tasks[name] = st
}

// Snapshot returns a copy of the collected stats.
func (s *Statistics) Snapshot() map[string]TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]TaskStats, len(s.tasks))
	for k, v := range s.tasks {
		out[k] = v
	}
	return out
}

// Dump logs one line per task, sorted by name.
func (s *Statistics) Dump(log *slog.Logger) {
	snap := s.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		st := snap[name]
		log.Info("task stats",
			slog.String("task", name),
			slog.Uint64("stack", uint64(st.StackSize)),
			slog.Int("priority", int(st.Priority)),
			slog.Uint64("ticks", st.Ticks),
			slog.Uint64("events", st.Events),
		)
	}
}
