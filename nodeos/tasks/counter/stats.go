package counter

import (
	"fmt"
	"log/slog"
)

// Stream tracks the counter values echoed back by the network for one
// uplink kind.
type Stream struct {
	seen     bool
	Current  uint32
	Valid    uint32
	Later    uint32
	Previous uint32
}

// update classifies counter against the last value: the next value is
// valid, a gap counts as later and anything else as previous.
func (s *Stream) update(counter uint32) {
	switch {
	case !s.seen:
		s.seen = true
		s.Current = counter
		s.Valid++
	case counter == s.Current+1:
		s.Current = counter
		s.Valid++
	case counter > s.Current+1:
		s.Current = counter
		s.Later++
	default:
		s.Previous++
	}
}

func (s Stream) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("current", uint64(s.Current)),
		slog.Uint64("valid", uint64(s.Valid)),
		slog.Uint64("later", uint64(s.Later)),
		slog.Uint64("previous", uint64(s.Previous)),
	)
}

func (s Stream) String() string {
	return fmt.Sprintf("current=%d valid=%d later=%d previous=%d", s.Current, s.Valid, s.Later, s.Previous)
}

// CounterStatistics is owned by the counter task; it is not synchronized.
type CounterStatistics struct {
	Confirmed   Stream
	Unconfirmed Stream
	log         *slog.Logger
}

func NewCounterStatistics(log *slog.Logger) *CounterStatistics {
	if log == nil {
		log = slog.Default()
	}
	return &CounterStatistics{log: log}
}

func (c *CounterStatistics) UpdateConfirmed(counter uint32) {
	c.Confirmed.update(counter)
	c.display("confirmed")
}

func (c *CounterStatistics) UpdateUnconfirmed(counter uint32) {
	c.Unconfirmed.update(counter)
	c.display("unconfirmed")
}

func (c *CounterStatistics) display(updated string) {
	c.log.Info("counters",
		slog.String("updated", updated),
		slog.Any("confirmed", c.Confirmed),
		slog.Any("unconfirmed", c.Unconfirmed),
	)
}
