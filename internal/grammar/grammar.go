package grammar

import (
	"math"
	"strings"
)

// Stream identifies which child pipe produced a line.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line of worker output without its terminator.
type Line struct {
	Stream Stream
	Text   string
}

// Category groups rules; at most one rule per category applies to a line.
type Category string

const (
	CategoryDiscovery  Category = "discovery"
	CategoryCompletion Category = "completion"
	CategoryRate       Category = "rate"
	CategoryItem       Category = "item"
	CategorySkip       Category = "skip"
	CategoryTranscode  Category = "transcode-rate"
	CategoryError      Category = "error"
)

// Delta is the effect of one matched rule. Nil fields leave counters as-is.
type Delta struct {
	TotalSeen      *int
	TotalCompleted *int
	ItemProgress   *float64
	CurrentItem    *string
	Warning        bool
}

// Rule pairs a matcher with the category it competes in.
type Rule struct {
	Name     string
	Category Category
	Match    func(Line) (Delta, bool)
}

// Counters is the per-job state the grammar reduces into.
type Counters struct {
	TotalSeen      int
	TotalCompleted int
	ItemProgress   float64
	CurrentItem    string
}

// Progress composes the overall percentage: completed items plus the
// fraction of the current item, over the items seen. Without a known total
// the per-item progress is reported alone.
func (c Counters) Progress() float64 {
	return Compose(c.TotalSeen, c.TotalCompleted, c.ItemProgress)
}

// Compose returns base + per-item progress capped at 100.
func Compose(seen, completed int, item float64) float64 {
	item = clamp(item, 0, 100)
	if seen <= 0 {
		return item
	}
	value := (float64(completed) + item/100) / float64(seen) * 100
	return clamp(value, 0, 100)
}

// Update is what Apply reports for one line.
type Update struct {
	// Progress is the composed percentage after the line was applied.
	Progress    float64
	CurrentItem string
	// Matched is true when at least one counter-changing rule fired.
	Matched bool
	Warning bool
	// Log is the line forwarded verbatim, with the stderr prefix when set.
	Log   string
	Rules []string
}

// Grammar is an ordered rule table for one worker kind.
type Grammar struct {
	Name  string
	Rules []Rule
	// StderrPrefix is prepended to stderr lines in Update.Log.
	StderrPrefix string
}

// Apply runs the rule table over line, mutates counters and reports the
// result. Empty lines yield ok=false and leave counters untouched.
func (g *Grammar) Apply(counters *Counters, line Line) (Update, bool) {
	text := strings.TrimRight(line.Text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return Update{}, false
	}
	line.Text = text

	update := Update{Log: text}
	if line.Stream == Stderr && g.StderrPrefix != "" {
		update.Log = g.StderrPrefix + text
	}

	matched := make(map[Category]struct{}, 4)
	for _, rule := range g.Rules {
		if _, done := matched[rule.Category]; done {
			continue
		}
		delta, ok := rule.Match(line)
		if !ok {
			continue
		}
		matched[rule.Category] = struct{}{}
		update.Rules = append(update.Rules, rule.Name)
		if delta.Warning {
			update.Warning = true
		}
		if counters.fold(delta) {
			update.Matched = true
		}
	}

	update.Progress = counters.Progress()
	update.CurrentItem = counters.CurrentItem
	return update, true
}

func (c *Counters) fold(d Delta) bool {
	changed := false
	if d.TotalSeen != nil {
		c.TotalSeen = *d.TotalSeen
		changed = true
	}
	if d.TotalCompleted != nil {
		c.TotalCompleted = *d.TotalCompleted
		changed = true
	}
	if d.CurrentItem != nil {
		if *d.CurrentItem != c.CurrentItem {
			c.ItemProgress = 0
		}
		c.CurrentItem = *d.CurrentItem
		changed = true
	}
	if d.ItemProgress != nil {
		c.ItemProgress = clamp(*d.ItemProgress, 0, 100)
		changed = true
	}
	return changed
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }
