package skin

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/liuscraft/voicecontrol/internal/logging"
	"github.com/liuscraft/voicecontrol/internal/voicecontrol"
)

const DefaultTick = time.Second

// Value is a measure's last polled output.
type Value struct {
	Name   string
	Number float64
	Text   string
}

type entry struct {
	host    *measureHost
	measure *voicecontrol.Measure
	last    Value
	polled  bool
}

// Runner 皮肤运行器，按 tick 轮询所有 measure
type Runner struct {
	plugin *voicecontrol.Plugin
	skin   *File
	tick   time.Duration
	out    io.Writer
	waker  *Waker

	mu      sync.Mutex
	entries []*entry
	loaded  bool
	closed  bool
}

// NewRunner prints value changes to out (nil discards them).
func NewRunner(plugin *voicecontrol.Plugin, f *File, tick time.Duration, out io.Writer) *Runner {
	if tick <= 0 {
		tick = DefaultTick
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		plugin: plugin,
		skin:   f,
		tick:   tick,
		out:    out,
		waker:  NewWaker(),
	}
}

// Load creates every measure in file order, then reads their keywords.
// A parent must appear before the children naming it.
func (r *Runner) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return
	}
	r.loaded = true

	for _, opts := range r.skin.Measures {
		host := newMeasureHost(r.skin, opts, r.waker)
		m := r.plugin.Create(ctx, host)
		if err := r.plugin.Reload(m, host); err != nil {
			host.log.Warnf("Reload: %v", err)
		}
		r.entries = append(r.entries, &entry{host: host, measure: m})
	}
	logging.Infof("Skin %s loaded with %d measures", r.skin.Name, len(r.entries))
}

// Tick polls parents first so children read this tick's state.
func (r *Runner) Tick() []Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	logging.StartTick()
	for _, e := range r.entries {
		if isParent(e.measure) {
			r.poll(e)
		}
	}
	for _, e := range r.entries {
		if !isParent(e.measure) {
			r.poll(e)
		}
	}

	values := make([]Value, len(r.entries))
	for i, e := range r.entries {
		values[i] = e.last
	}
	return values
}

func (r *Runner) poll(e *entry) {
	v := Value{
		Name:   e.host.name,
		Number: r.plugin.Poll(e.measure),
		Text:   r.plugin.Text(e.measure),
	}
	if !e.polled || v != e.last {
		fmt.Fprintf(r.out, "%s: %g %q\n", v.Name, v.Number, v.Text)
	}
	e.last = v
	e.polled = true
}

// Run ticks on the interval, and early when recognition events arrive,
// until ctx is done. Measures are destroyed on return.
func (r *Runner) Run(ctx context.Context) error {
	r.Load(ctx)
	defer r.Close()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	r.Tick()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick()
		case <-r.waker.C():
			r.Tick()
		}
	}
}

// Close destroys children before parents. Safe to call twice.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	for _, e := range r.entries {
		if !isParent(e.measure) {
			r.plugin.Destroy(e.measure)
		}
	}
	for _, e := range r.entries {
		if e.measure.State() != voicecontrol.StateReleased {
			r.plugin.Destroy(e.measure)
		}
	}
	logging.Infof("Skin %s unloaded", r.skin.Name)
}

func isParent(m *voicecontrol.Measure) bool {
	return m.State() == voicecontrol.StateParentActive
}
