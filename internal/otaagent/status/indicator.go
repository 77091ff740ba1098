package status

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

// Pattern is an LED blink pattern. A zero Off keeps the LED on, a zero On keeps it off.
type Pattern struct {
	Name string
	On   time.Duration
	Off  time.Duration
}

var (
	PatternAlive  = Pattern{Name: "alive", On: 100 * time.Millisecond, Off: 1900 * time.Millisecond}
	PatternBusy   = Pattern{Name: "busy", On: 100 * time.Millisecond, Off: 100 * time.Millisecond}
	PatternFailed = Pattern{Name: "failed", On: time.Second, Off: time.Second}
	PatternDone   = Pattern{Name: "done", On: time.Second}
)

// Indicator drives a status LED through the Linux LED class interface
// (/sys/class/leds/<name>). Without a path it only tracks the pattern.
type Indicator struct {
	dir string

	mu      sync.Mutex
	current Pattern
}

var _ core.Sink = (*Indicator)(nil)

func NewIndicator(dir string) *Indicator {
	i := &Indicator{dir: dir}
	i.set(PatternAlive)
	return i
}

// Pattern returns the pattern currently shown.
func (i *Indicator) Pattern() Pattern {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

func (i *Indicator) Report(o core.Outcome) {
	switch o.Kind {
	case core.OutcomeInstallSucceeded:
		i.set(PatternDone)
	case core.OutcomeNoUpdate:
		i.set(PatternAlive)
	default:
		i.set(PatternFailed)
	}
}

func (i *Indicator) Progress(p core.Progress) {
	switch p.State {
	case core.StateFetching, core.StateWriting, core.StateVerifying:
		i.set(PatternBusy)
	case core.StateCommitted:
		i.set(PatternDone)
	}
}

func (i *Indicator) set(p Pattern) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.current == p {
		return
	}
	i.current = p

	if i.dir == "" {
		return
	}
	if err := i.apply(p); err != nil {
		log.Warn("Failed to drive status LED", "led", i.dir, "pattern", p.Name, "error", err)
	}
}

func (i *Indicator) apply(p Pattern) error {
	switch {
	case p.On > 0 && p.Off > 0:
		if err := i.write("trigger", "timer"); err != nil {
			return err
		}
		if err := i.write("delay_on", strconv.FormatInt(p.On.Milliseconds(), 10)); err != nil {
			return err
		}
		return i.write("delay_off", strconv.FormatInt(p.Off.Milliseconds(), 10))
	case p.On > 0:
		if err := i.write("trigger", "none"); err != nil {
			return err
		}
		return i.write("brightness", "1")
	default:
		if err := i.write("trigger", "none"); err != nil {
			return err
		}
		return i.write("brightness", "0")
	}
}

func (i *Indicator) write(attr, value string) error {
	return os.WriteFile(filepath.Join(i.dir, attr), []byte(value), 0o644)
}
