// Package ui renders a live terminal view of a run in progress, fed by the
// engine's sample observer. It is optional glue around the core: closing it
// never affects the measurement.
package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	tm "github.com/nsf/termbox-go"

	"github.com/caleb-hansolo/lanbench/stats"
)

const repaintInterval = 250 * time.Millisecond

// Monitor is a live single-run display. Start it before the run, hand its
// Sample method to the engine, and Stop it when the run ends.
type Monitor struct {
	title string

	mu      sync.Mutex
	latest  stats.Sample
	prev    stats.Sample
	stopped bool

	interrupt chan struct{}
	quit      chan struct{}
	stopOnce  sync.Once
	intOnce   sync.Once
}

// NewMonitor returns a monitor titled with the role and peer description.
func NewMonitor(title string) *Monitor {
	return &Monitor{
		title:     title,
		interrupt: make(chan struct{}),
		quit:      make(chan struct{}),
	}
}

// Start initializes the terminal and begins repainting. It fails when no
// usable terminal is attached.
func (m *Monitor) Start() error {
	if err := tm.Init(); err != nil {
		return fmt.Errorf("terminal init failed: %w", err)
	}
	tm.Clear(tm.ColorDefault, tm.ColorDefault)
	tm.Flush()

	go m.paintLoop()
	go m.pollEvents()
	return nil
}

// Sample is a stats.SampleFunc; it only stores the observation and never
// blocks the transfer loop.
func (m *Monitor) Sample(s stats.Sample) {
	m.mu.Lock()
	m.prev = m.latest
	m.latest = s
	m.mu.Unlock()
}

// Interrupted is closed when the user asks to quit from the display
// (Esc or Ctrl-C while the terminal is in raw mode).
func (m *Monitor) Interrupted() <-chan struct{} { return m.interrupt }

// Stop restores the terminal. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
		// Serialize with any in-flight paint before tearing the
		// terminal down.
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		tm.Interrupt()
		tm.Close()
	})
}

func (m *Monitor) paintLoop() {
	ticker := time.NewTicker(repaintInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.paint()
		}
	}
}

func (m *Monitor) pollEvents() {
	for {
		switch ev := tm.PollEvent(); ev.Type {
		case tm.EventKey:
			if ev.Key == tm.KeyEsc || ev.Key == tm.KeyCtrlC {
				m.intOnce.Do(func() { close(m.interrupt) })
			}
		case tm.EventInterrupt, tm.EventError:
			return
		}
	}
}

func (m *Monitor) paint() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	cur, prev := m.latest, m.prev

	var instRate, avgRate float64
	if d := cur.Offset - prev.Offset; d > 0 && cur.Bytes >= prev.Bytes {
		instRate = float64(cur.Bytes-prev.Bytes) / d.Seconds()
	}
	if cur.Offset > 0 {
		avgRate = float64(cur.Bytes) / cur.Offset.Seconds()
	}

	tm.Clear(tm.ColorDefault, tm.ColorDefault)
	w, _ := tm.Size()
	printText(0, 0, w, m.title, tm.ColorBlack, tm.ColorWhite)
	printText(0, 2, w, fmt.Sprintf("elapsed   %s", stats.DurationToString(cur.Offset)),
		tm.ColorDefault, tm.ColorDefault)
	printText(0, 3, w, fmt.Sprintf("bytes     %s", stats.NumberToUnit(cur.Bytes)),
		tm.ColorDefault, tm.ColorDefault)
	printText(0, 4, w, fmt.Sprintf("rate      %sbps now   %sbps avg",
		stats.BytesToRate(instRate), stats.BytesToRate(avgRate)),
		tm.ColorDefault, tm.ColorDefault)
	printText(0, 6, w, "Esc to abort", tm.ColorWhite, tm.ColorDefault)
	tm.Flush()
}

func printText(x, y, w int, text string, fg, bg tm.Attribute) {
	for _, r := range text {
		if x >= w {
			break
		}
		tm.SetCell(x, y, r, fg, bg)
		x += runewidth.RuneWidth(r)
	}
}
