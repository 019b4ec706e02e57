// Package overlay defines the on-screen stats line contract and a console
// implementation rendered with the teacher stack's reporting libraries
// (color, tablewriter, asciigraph) instead of a GUI binding.
package overlay

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"

	"srtbalance/internal/balancer"
)

// Adapter updates the human-readable stats line. Update is a no-op if no
// overlay binding exists; formatting is adapter-owned.
type Adapter interface {
	Update(out balancer.Output)
}

// Trender is an optional extension an Adapter may implement: a rolling
// sparkline of recent bitrate decisions. The control loop type-asserts for
// it and skips it when absent — balancer and runner code never know it
// exists.
type Trender interface {
	Trend(history []int64)
}

// NoOp is an Adapter for sessions with no overlay binding at all.
type NoOp struct{}

// Update implements Adapter; it silently discards every call.
func (NoOp) Update(balancer.Output) {}

// Line renders one colorized stats line per call to w, matching the
// teacher stack's console-reporting style (fatih/color for emphasis).
type Line struct {
	w io.Writer
}

// NewLine returns a Line overlay writing to w.
func NewLine(w io.Writer) *Line {
	return &Line{w: w}
}

// Update implements Adapter.
func (l *Line) Update(out balancer.Output) {
	bitrate := color.New(color.FgCyan, color.Bold).Sprintf("%d kbit/s", out.NewBitrate/1000)
	rtt := colorizeRTT(out.RTT, out.RTTThMax)
	fmt.Fprintf(l.w, "bitrate=%s rtt=%sms [%.0f,%.0f] bs=%d [%.0f,%.0f,%.0f] throughput=%.0fbps\n",
		bitrate, rtt, out.RTTThMin, out.RTTThMax, out.BS, out.BSTh1, out.BSTh2, out.BSTh3, out.Throughput)
}

func colorizeRTT(rttMs int64, thMax float64) string {
	s := fmt.Sprintf("%d", rttMs)
	if thMax > 0 && float64(rttMs) > thMax {
		return color.RedString(s)
	}
	return color.GreenString(s)
}

// Table redraws a single-row snapshot table on every Update, and keeps a
// bounded trend buffer of recent bitrate decisions for Trend.
type Table struct {
	w       io.Writer
	history []int64
	maxLen  int
}

// NewTable returns a Table overlay writing to w, keeping up to maxLen
// bitrate samples for its trend sparkline.
func NewTable(w io.Writer, maxLen int) *Table {
	if maxLen <= 0 {
		maxLen = 60
	}
	return &Table{w: w, maxLen: maxLen}
}

// Update implements Adapter.
func (t *Table) Update(out balancer.Output) {
	t.history = append(t.history, int64(out.NewBitrate))
	if len(t.history) > t.maxLen {
		t.history = t.history[len(t.history)-t.maxLen:]
	}

	table := tablewriter.NewWriter(t.w)
	table.Header("bitrate (bps)", "throughput (bps)", "rtt (ms)", "rtt_min", "rtt_max", "bs", "bs_th1", "bs_th2", "bs_th3")
	_ = table.Append(
		fmt.Sprintf("%d", out.NewBitrate),
		fmt.Sprintf("%.0f", out.Throughput),
		fmt.Sprintf("%d", out.RTT),
		fmt.Sprintf("%.0f", out.RTTThMin),
		fmt.Sprintf("%.0f", out.RTTThMax),
		fmt.Sprintf("%d", out.BS),
		fmt.Sprintf("%.0f", out.BSTh1),
		fmt.Sprintf("%.0f", out.BSTh2),
		fmt.Sprintf("%.0f", out.BSTh3),
	)
	_ = table.Render()
}

// Trend implements Trender: it prints an ASCII sparkline of the recent
// bitrate history.
func (t *Table) Trend(history []int64) {
	if len(history) < 2 {
		return
	}
	data := make([]float64, len(history))
	for i, v := range history {
		data[i] = float64(v) / 1000 // kbit/s, for a readable y-axis
	}
	graph := asciigraph.Plot(data, asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption("bitrate (kbit/s)"))
	fmt.Fprintln(t.w, graph)
	fmt.Fprintln(t.w, strings.Repeat("-", 60))
}

// History returns the buffered bitrate samples, for a caller (the control
// loop) that wants to drive Trend itself on a slower cadence than Update.
func (t *Table) History() []int64 {
	out := make([]int64, len(t.history))
	copy(out, t.history)
	return out
}
