package recognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/liuscraft/voicecontrol/internal/logging"
)

// Options 会话启动参数
type Options struct {
	// GrammarFile selects a static command grammar. Empty means dictation.
	GrammarFile string
	Capacity    int
	QueueSize   int
	Waker       Waker
}

// Stats counts what draining has seen over the session's lifetime.
type Stats struct {
	Events       int
	Dropped      int
	Unrecognized int
	QueueDropped int
}

func (s Stats) String() string {
	return fmt.Sprintf("events=%d dropped=%d unrecognized=%d queue_dropped=%d",
		s.Events, s.Dropped, s.Unrecognized, s.QueueDropped)
}

// Session owns one recognizer, its context, the audio input and a single grammar.
// It is driven from one goroutine; only the EventQueue is shared with the engine.
type Session struct {
	recognizer Recognizer
	context    Context
	audio      AudioInput
	grammar    Grammar

	queue  *EventQueue
	buffer *ResultBuffer

	soundActive bool
	closed      bool
	heard       int
	stats       Stats
	grammarFile string
}

// Start brings up a session against engine. On failure every acquired handle is
// released and an *EngineError is returned.
func Start(ctx context.Context, engine Engine, opts Options) (*Session, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	logging.Debugf("Session: initializing speech recognizer device (engine=%s)", engine.Name())

	s := &Session{
		queue:       NewEventQueue(opts.QueueSize, opts.Waker),
		buffer:      NewResultBuffer(opts.Capacity),
		grammarFile: opts.GrammarFile,
	}
	if err := s.init(ctx, engine); err != nil {
		if stopErr := s.Stop(); stopErr != nil {
			logging.Warnf("Session: error releasing partial state: %v", stopErr)
		}
		return nil, err
	}
	return s, nil
}

func (s *Session) init(ctx context.Context, engine Engine) error {
	recognizer, err := engine.Acquire(ctx)
	if err != nil {
		return newEngineError(StageAcquireRecognizer, err)
	}
	s.recognizer = recognizer

	rc, err := s.recognizer.NewContext(s.queue)
	if err != nil {
		return newEngineError(StageCreateContext, err)
	}
	s.context = rc

	audio, err := s.recognizer.BindDefaultAudio(ctx)
	if err != nil {
		return newEngineError(StageBindAudio, err)
	}
	s.audio = audio

	var grammar Grammar
	if s.grammarFile != "" {
		grammar, err = s.context.LoadCommandGrammar(s.grammarFile)
	} else {
		grammar, err = s.context.LoadDictation()
	}
	if err != nil {
		return newEngineError(StageLoadGrammar, err)
	}
	s.grammar = grammar

	if err := s.grammar.Activate(); err != nil {
		return newEngineError(StageActivate, err)
	}
	if err := s.recognizer.SetActive(ctx, true); err != nil {
		return newEngineError(StageActivate, err)
	}
	return nil
}

// Drain folds every queued event into the session state and reports whether a
// sound interval is in progress afterwards.
func (s *Session) Drain() bool {
	if s == nil || s.closed {
		return false
	}
	for _, event := range s.queue.Drain() {
		s.apply(event)
	}
	return s.soundActive
}

func (s *Session) apply(event Event) {
	s.stats.Events++

	switch event.Kind {
	case SoundStart:
		s.soundActive = true
		s.heard = 0
		s.buffer.Reset()
	case SoundEnd:
		if s.soundActive && s.heard == 0 {
			// heard but not understood
			s.stats.Unrecognized++
			logging.Debugf("Session: sound interval ended without a recognized phrase")
		}
		s.soundActive = false
	case Recognized:
		s.heard++
		if !s.buffer.Add(event.Text) {
			s.stats.Dropped++
		}
	}
}

func (s *Session) SoundActive() bool {
	if s == nil {
		return false
	}
	return s.soundActive
}

// Results returns the buffered phrases, oldest first.
func (s *Session) Results() []string {
	if s == nil || s.buffer == nil {
		return nil
	}
	return s.buffer.Phrases()
}

// Render joins the buffered phrases with a single space.
func (s *Session) Render() string {
	if s == nil || s.buffer == nil {
		return ""
	}
	return s.buffer.String()
}

func (s *Session) GrammarFile() string {
	if s == nil {
		return ""
	}
	return s.grammarFile
}

func (s *Session) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	stats := s.stats
	if s.queue != nil {
		stats.QueueDropped = s.queue.Dropped()
	}
	return stats
}

// Stop releases grammar, audio, context and recognizer in that order. It is safe
// to call on a nil, stopped or partially started session.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	if s.grammar == nil && s.audio == nil && s.context == nil && s.recognizer == nil {
		return nil
	}

	logging.Debugf("Session: releasing speech recognizer device (%s)", s.Stats())

	var errs []error
	if s.grammar != nil {
		if err := s.grammar.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release grammar: %w", err))
		}
		s.grammar = nil
	}
	if s.audio != nil {
		if err := s.audio.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release audio: %w", err))
		}
		s.audio = nil
	}
	if s.context != nil {
		if err := s.context.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release context: %w", err))
		}
		s.context = nil
	}
	if s.recognizer != nil {
		if err := s.recognizer.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release recognizer: %w", err))
		}
		s.recognizer = nil
	}

	s.closed = true
	s.soundActive = false
	s.buffer.Reset()
	s.queue.Drain()
	return errors.Join(errs...)
}
