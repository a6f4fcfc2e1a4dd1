package framed

import (
	"fmt"
	"sync"
)

type (
	// Statistics is the interface that wraps operations for accumulating
	// per-connection traffic counters when connections die.
	Statistics interface {
		// AddConnStats ingests the byte counters of a finished Conn.
		AddConnStats(*Conn)
		// Reset clears statistics held now.
		Reset()
		// String returns a string that represents the current statistics.
		String() string
	}

	// TrafficStatistics implements Statistics to hold the in/out traffic on
	// a framed server.
	TrafficStatistics struct {
		mu       sync.RWMutex
		inBytes  int64
		outBytes int64
	}

	nopStats struct{}
)

// AddConnStats ingests inBytes and outBytes from conn.
func (ts *TrafficStatistics) AddConnStats(conn *Conn) {
	in, out := conn.Stats()
	ts.mu.Lock()
	ts.inBytes += in
	ts.outBytes += out
	ts.mu.Unlock()
}

// Reset clears statistics held now.
func (ts *TrafficStatistics) Reset() {
	ts.mu.Lock()
	ts.inBytes, ts.outBytes = 0, 0
	ts.mu.Unlock()
}

// String returns the in/out traffic on a framed server as a json string.
func (ts *TrafficStatistics) String() (str string) {
	ts.mu.RLock()
	str = fmt.Sprintf(`{"in_bytes": %d, "out_bytes": %d}`, ts.inBytes, ts.outBytes)
	ts.mu.RUnlock()
	return
}

func (nopStats) AddConnStats(*Conn) {}
func (nopStats) Reset()             {}
func (nopStats) String() string     { return "{}" }
