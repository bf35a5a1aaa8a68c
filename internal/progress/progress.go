// Package progress renders a live status line and the final summary of a
// discovery session.
package progress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/aggregate"
)

// Status is one progress sample.
type Status struct {
	State     string
	Attempt   int
	Exchanges int64
	Endpoints int
	Sockets   int64
	Failures  int64
}

// Display manages the status line during a session.
type Display struct {
	mu      sync.Mutex
	started bool
	stopped bool

	status  io.Writer
	summary io.Writer

	last      Status
	startTime time.Time
	target    string
	lastLine  string
}

// New creates a display writing the status line to stderr and the summary to
// stdout.
func New() *Display {
	return NewWithWriters(os.Stderr, os.Stdout)
}

// NewWithWriters creates a display with explicit writers.
func NewWithWriters(status, summary io.Writer) *Display {
	return &Display{status: status, summary: summary}
}

// Start begins the progress display.
func (d *Display) Start(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = time.Now()
	d.target = target
}

// Update redraws the status line.
func (d *Display) Update(st Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = st
	if !d.started || d.stopped {
		return
	}

	line := fmt.Sprintf("\r[%-10s] attempt %d | Requests: %d | APIs: %d | Sockets: %d | Failures: %d | %s",
		st.State, st.Attempt, st.Exchanges, st.Endpoints, st.Sockets, st.Failures,
		formatDuration(time.Since(d.startTime)))

	// Clear a longer previous line before drawing.
	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.status, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.status, line)
	d.lastLine = line
}

// Stop stops the progress display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true
	fmt.Fprintln(d.status)
}

// Last returns the most recent sample.
func (d *Display) Last() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// PrintSummary prints the end-of-session report.
func (d *Display) PrintSummary(state string, s aggregate.Summary, elapsed time.Duration) {
	w := d.summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                     Discovery Complete                       ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Target:              %s\n", truncateURL(d.target, 50))
	fmt.Fprintf(w, "  Outcome:             %s\n", state)
	fmt.Fprintf(w, "  Duration:            %s\n", formatDuration(elapsed))
	fmt.Fprintf(w, "  API Endpoints:       %d\n", s.TotalEndpoints)
	fmt.Fprintf(w, "  Third Party:         %d\n", s.ThirdParty)
	fmt.Fprintf(w, "  Maybe Sensitive:     %d\n", s.Sensitive)
	fmt.Fprintf(w, "  Suspicious:          %d\n", s.Suspicious)
	fmt.Fprintln(w)

	printCounts(w, "By Type", s.ByType)
	printCounts(w, "By Method", s.ByMethod)
	printCounts(w, "By Purpose", s.ByPurpose)
	printCounts(w, "By Site", s.BySite)
}

// printCounts prints a tally, largest first.
func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintf(w, "  %s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-28s %d\n", truncateURL(k, 28), counts[k])
	}
	fmt.Fprintln(w)
}

// truncateURL truncates a URL to maxLen characters.
func truncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
