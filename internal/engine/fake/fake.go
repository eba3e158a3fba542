// Package fake provides an in-process recognition engine that replays
// scripted events. It backs tests and offline runs of the host.
package fake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/liuscraft/voicecontrol/internal/grammar"
	"github.com/liuscraft/voicecontrol/internal/recognition"
)

const DefaultInterval = 500 * time.Millisecond

var ErrReleased = errors.New("fake recognizer released")

// Engine records every acquire/release call so tests can check ordering.
type Engine struct {
	mu       sync.Mutex
	failures map[recognition.Stage]error
	calls    []string
	live     []*Recognizer

	script   []recognition.Event
	interval time.Duration
}

func New() *Engine {
	return &Engine{failures: make(map[recognition.Stage]error)}
}

// FailAt makes the given start-up stage return err.
func (e *Engine) FailAt(stage recognition.Stage, err error) *Engine {
	e.mu.Lock()
	e.failures[stage] = err
	e.mu.Unlock()
	return e
}

// WithScript replays events once the recognizer is activated, one every interval.
func (e *Engine) WithScript(events []recognition.Event, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	e.mu.Lock()
	e.script = append([]recognition.Event(nil), events...)
	e.interval = interval
	e.mu.Unlock()
	return e
}

func (e *Engine) Name() string { return "fake" }

func (e *Engine) Acquire(ctx context.Context) (recognition.Recognizer, error) {
	if err := e.fail(recognition.StageAcquireRecognizer, "acquire recognizer"); err != nil {
		return nil, err
	}
	r := &Recognizer{engine: e}
	e.mu.Lock()
	e.live = append(e.live, r)
	e.mu.Unlock()
	return r, nil
}

// Emit pushes events to the most recently acquired live recognizer.
func (e *Engine) Emit(events ...recognition.Event) error {
	e.mu.Lock()
	var r *Recognizer
	if len(e.live) > 0 {
		r = e.live[len(e.live)-1]
	}
	e.mu.Unlock()

	if r == nil {
		return errors.New("no live recognizer")
	}
	return r.Emit(events...)
}

// Calls returns the ordered call log, e.g. "acquire recognizer", "release grammar".
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Live reports how many recognizers are acquired but not released.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

func (e *Engine) record(call string) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *Engine) fail(stage recognition.Stage, call string) error {
	e.record(call)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures[stage]
}

func (e *Engine) drop(r *Recognizer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.live {
		if cur == r {
			e.live = append(e.live[:i], e.live[i+1:]...)
			return
		}
	}
}

// Recognizer is the fake engine connection.
type Recognizer struct {
	engine *Engine

	mu       sync.Mutex
	queue    *recognition.EventQueue
	released bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func (r *Recognizer) NewContext(queue *recognition.EventQueue) (recognition.Context, error) {
	if err := r.engine.fail(recognition.StageCreateContext, "create context"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.queue = queue
	r.mu.Unlock()
	return &recoContext{engine: r.engine}, nil
}

func (r *Recognizer) BindDefaultAudio(ctx context.Context) (recognition.AudioInput, error) {
	if err := r.engine.fail(recognition.StageBindAudio, "bind audio"); err != nil {
		return nil, err
	}
	return &handle{engine: r.engine, name: "audio"}, nil
}

func (r *Recognizer) SetActive(ctx context.Context, active bool) error {
	if !active {
		r.record("deactivate recognizer")
		r.stopReplay()
		return nil
	}
	r.record("activate recognizer")

	r.engine.mu.Lock()
	script := r.engine.script
	interval := r.engine.interval
	r.engine.mu.Unlock()

	if len(script) > 0 {
		r.startReplay(script, interval)
	}
	return nil
}

func (r *Recognizer) Release() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	r.mu.Unlock()

	r.stopReplay()
	r.record("release recognizer")
	r.engine.drop(r)
	return nil
}

// Emit delivers events as if the engine's own thread produced them.
func (r *Recognizer) Emit(events ...recognition.Event) error {
	r.mu.Lock()
	queue := r.queue
	released := r.released
	r.mu.Unlock()

	if released {
		return ErrReleased
	}
	if queue == nil {
		return errors.New("fake recognizer has no context")
	}
	for _, ev := range events {
		queue.Push(ev)
	}
	return nil
}

func (r *Recognizer) record(call string) {
	r.engine.record(call)
}

func (r *Recognizer) startReplay(script []recognition.Event, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			for _, ev := range script {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				ev.At = time.Now()
				if err := r.Emit(ev); err != nil {
					return
				}
			}
		}
	}()
}

func (r *Recognizer) stopReplay() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

type recoContext struct {
	engine *Engine
}

func (c *recoContext) LoadCommandGrammar(path string) (recognition.Grammar, error) {
	if err := c.engine.fail(recognition.StageLoadGrammar, "load command grammar"); err != nil {
		return nil, err
	}
	if _, err := grammar.LoadFile(path); err != nil {
		return nil, err
	}
	return &handle{engine: c.engine, name: "grammar"}, nil
}

func (c *recoContext) LoadDictation() (recognition.Grammar, error) {
	if err := c.engine.fail(recognition.StageLoadGrammar, "load dictation"); err != nil {
		return nil, err
	}
	return &handle{engine: c.engine, name: "grammar"}, nil
}

func (c *recoContext) Release() error {
	c.engine.record("release context")
	return nil
}

// handle is a grammar or audio input.
type handle struct {
	engine *Engine
	name   string
}

func (h *handle) Activate() error {
	return h.engine.fail(recognition.StageActivate, "activate "+h.name)
}

func (h *handle) Release() error {
	h.engine.record("release " + h.name)
	return nil
}

// ParseScript turns lines like "sound_start", "recognized: turn on lights" and
// "sound_end" into events.
func ParseScript(lines []string) ([]recognition.Event, error) {
	events := make([]recognition.Event, 0, len(lines))
	for i, line := range lines {
		kind, text, _ := strings.Cut(strings.TrimSpace(line), ":")
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case "sound_start", "soundstart":
			events = append(events, recognition.NewSoundStartEvent())
		case "sound_end", "soundend":
			events = append(events, recognition.NewSoundEndEvent())
		case "recognized", "recognition":
			text = strings.TrimSpace(text)
			if text == "" {
				return nil, fmt.Errorf("script line %d: recognized event needs text", i+1)
			}
			events = append(events, recognition.NewRecognizedEvent(text))
		default:
			return nil, fmt.Errorf("script line %d: unknown event %q", i+1, line)
		}
	}
	return events, nil
}
