// Package stats is a process-wide, fire-and-forget sink for counters and
// stopwatches. The analysis core reports into it but never reads it back;
// nothing here couples to correctness.
package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	mu       sync.Mutex
	counters = map[string]uint64{}
	watches  = map[string]*Stopwatch{}
)

// systemTime returns the user CPU time of the process in microseconds.
func systemTime() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return ru.Utime.Sec*1_000_000 + int64(ru.Utime.Usec)
}

// A Stopwatch accumulates user CPU time across start/stop/resume cycles.
type Stopwatch struct {
	started  int64
	finished int64
	elapsed  int64
}

func newStopwatch() *Stopwatch {
	sw := &Stopwatch{}
	sw.start()
	return sw
}

func (sw *Stopwatch) start() {
	sw.started = systemTime()
	sw.finished = -1
	sw.elapsed = 0
}

func (sw *Stopwatch) stop() {
	if sw.finished < sw.started {
		sw.finished = systemTime()
	}
}

func (sw *Stopwatch) resume() {
	if sw.finished >= sw.started {
		sw.elapsed += sw.finished - sw.started
		sw.started = systemTime()
		sw.finished = -1
	}
}

// Elapsed returns the accumulated time in microseconds, including the
// current lap if the watch is running.
func (sw *Stopwatch) Elapsed() int64 {
	if sw.finished < sw.started {
		return sw.elapsed + systemTime() - sw.started
	}
	return sw.elapsed + sw.finished - sw.started
}

// Seconds returns the accumulated time in seconds.
func (sw *Stopwatch) Seconds() float64 {
	return float64(sw.Elapsed()) / 1_000_000
}

func (sw *Stopwatch) String() string {
	t := sw.Elapsed()
	h := t / 3_600_000_000
	m := t/60_000_000 - h*60
	s := float64(t)/1_000_000 - float64(m)*60 - float64(h)*3600
	out := ""
	if h > 0 {
		out += fmt.Sprintf("%dh", h)
	}
	if m > 0 {
		out += fmt.Sprintf("%dm", m)
	}
	return out + fmt.Sprintf("%.6fs", s)
}

// Reset discards every counter and stopwatch.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	counters = map[string]uint64{}
	watches = map[string]*Stopwatch{}
}

// Count increments the named counter.
func Count(name string) {
	mu.Lock()
	defer mu.Unlock()
	counters[name]++
}

// CountMax raises the named counter to v if it is below it.
func CountMax(name string, v uint64) {
	mu.Lock()
	defer mu.Unlock()
	if counters[name] < v {
		counters[name] = v
	}
}

// Get returns the named counter's value.
func Get(name string) uint64 {
	mu.Lock()
	defer mu.Unlock()
	return counters[name]
}

// Start resets the named stopwatch and starts it.
func Start(name string) {
	mu.Lock()
	defer mu.Unlock()
	watches[name] = newStopwatch()
}

// Stop stops the named stopwatch if it is running.
func Stop(name string) {
	mu.Lock()
	defer mu.Unlock()
	if sw, ok := watches[name]; ok {
		sw.stop()
	}
}

// Resume restarts a stopped stopwatch, keeping its accumulated time. An
// unknown name starts a fresh one.
func Resume(name string) {
	mu.Lock()
	defer mu.Unlock()
	if sw, ok := watches[name]; ok {
		sw.resume()
	} else {
		watches[name] = newStopwatch()
	}
}

// WriteTo prints every counter and stopwatch, sorted by name.
func WriteTo(w io.Writer) error {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s: %d\n", name, counters[name]); err != nil {
			return err
		}
	}
	names = names[:0]
	for name := range watches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s: %s\n", name, watches[name]); err != nil {
			return err
		}
	}
	return nil
}
