package recognition_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/liuscraft/voicecontrol/internal/engine/fake"
	"github.com/liuscraft/voicecontrol/internal/recognition"
)

func startSession(t *testing.T, engine *fake.Engine, opts recognition.Options) *recognition.Session {
	t.Helper()
	s, err := recognition.Start(context.Background(), engine, opts)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func emit(t *testing.T, engine *fake.Engine, events ...recognition.Event) {
	t.Helper()
	if err := engine.Emit(events...); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
}

func TestStart_AcquiresInOrder(t *testing.T) {
	engine := fake.New()
	s := startSession(t, engine, recognition.Options{})

	want := []string{
		"acquire recognizer",
		"create context",
		"bind audio",
		"load dictation",
		"activate grammar",
		"activate recognizer",
	}
	if got := engine.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	release := engine.Calls()[len(want):]
	wantRelease := []string{"release grammar", "release audio", "release context", "release recognizer"}
	if !reflect.DeepEqual(release, wantRelease) {
		t.Fatalf("release calls = %v, want %v", release, wantRelease)
	}
	if engine.Live() != 0 {
		t.Fatalf("expected no live recognizers, got %d", engine.Live())
	}
}

func TestStart_CommandGrammarFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "VC.grxml")
	data := `<grammar root="main"><rule id="main"><item>turn on lights</item></rule></grammar>`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write grammar: %v", err)
	}

	engine := fake.New()
	s := startSession(t, engine, recognition.Options{GrammarFile: path})

	calls := engine.Calls()
	if calls[3] != "load command grammar" {
		t.Fatalf("expected command grammar to be loaded, got %v", calls)
	}
	if s.GrammarFile() != path {
		t.Fatalf("GrammarFile() = %q, want %q", s.GrammarFile(), path)
	}
}

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("engine code %d", e.code) }
func (e codedError) Code() int     { return e.code }

func TestStart_FailureReleasesPartialState(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		stage       recognition.Stage
		wantRelease []string
	}{
		{"acquire", recognition.StageAcquireRecognizer, nil},
		{"context", recognition.StageCreateContext, []string{"release recognizer"}},
		{"audio", recognition.StageBindAudio, []string{"release context", "release recognizer"}},
		{"grammar", recognition.StageLoadGrammar, []string{"release audio", "release context", "release recognizer"}},
		{"activate", recognition.StageActivate, []string{"release grammar", "release audio", "release context", "release recognizer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := fake.New().FailAt(tt.stage, boom)

			s, err := recognition.Start(context.Background(), engine, recognition.Options{})
			if s != nil {
				t.Fatal("expected nil session on failure")
			}

			var engineErr *recognition.EngineError
			if !errors.As(err, &engineErr) {
				t.Fatalf("expected *EngineError, got %T (%v)", err, err)
			}
			if engineErr.Stage != tt.stage {
				t.Fatalf("stage = %v, want %v", engineErr.Stage, tt.stage)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("expected error to wrap cause, got %v", err)
			}

			var released []string
			for _, call := range engine.Calls() {
				if len(call) > 8 && call[:8] == "release " {
					released = append(released, call)
				}
			}
			if !reflect.DeepEqual(released, tt.wantRelease) {
				t.Fatalf("released = %v, want %v", released, tt.wantRelease)
			}
			if engine.Live() != 0 {
				t.Fatalf("expected no live recognizers, got %d", engine.Live())
			}
		})
	}
}

func TestStart_MissingGrammarFile(t *testing.T) {
	engine := fake.New()
	_, err := recognition.Start(context.Background(), engine, recognition.Options{
		GrammarFile: filepath.Join(t.TempDir(), "missing.grxml"),
	})

	var engineErr *recognition.EngineError
	if !errors.As(err, &engineErr) || engineErr.Stage != recognition.StageLoadGrammar {
		t.Fatalf("expected LoadGrammar failure, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist cause, got %v", err)
	}
}

func TestStart_ErrorCode(t *testing.T) {
	engine := fake.New().FailAt(recognition.StageBindAudio, codedError{code: 0x80045003})

	_, err := recognition.Start(context.Background(), engine, recognition.Options{})
	var engineErr *recognition.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected *EngineError, got %v", err)
	}
	if engineErr.Code != 0x80045003 {
		t.Fatalf("Code = %#x, want %#x", engineErr.Code, 0x80045003)
	}
}

func TestStart_NilEngine(t *testing.T) {
	if _, err := recognition.Start(context.Background(), nil, recognition.Options{}); !errors.Is(err, recognition.ErrNilEngine) {
		t.Fatalf("expected ErrNilEngine, got %v", err)
	}
}

func TestDrain_NoEvents(t *testing.T) {
	s := startSession(t, fake.New(), recognition.Options{})
	if s.Drain() {
		t.Fatal("expected no sound activity")
	}
	if s.Render() != "" {
		t.Fatalf("expected empty render, got %q", s.Render())
	}
}

func TestDrain_SoundActiveFollowsLastStartEnd(t *testing.T) {
	tests := []struct {
		name   string
		events []recognition.Event
		want   bool
	}{
		{"start", []recognition.Event{recognition.NewSoundStartEvent()}, true},
		{"start end", []recognition.Event{recognition.NewSoundStartEvent(), recognition.NewSoundEndEvent()}, false},
		{"start reco", []recognition.Event{recognition.NewSoundStartEvent(), recognition.NewRecognizedEvent("a")}, true},
		{"end reco", []recognition.Event{recognition.NewSoundEndEvent(), recognition.NewRecognizedEvent("a")}, false},
		{"start end start reco", []recognition.Event{
			recognition.NewSoundStartEvent(),
			recognition.NewSoundEndEvent(),
			recognition.NewSoundStartEvent(),
			recognition.NewRecognizedEvent("a"),
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := fake.New()
			s := startSession(t, engine, recognition.Options{})
			emit(t, engine, tt.events...)
			if got := s.Drain(); got != tt.want {
				t.Fatalf("Drain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDrain_BufferKeepsFirstN(t *testing.T) {
	engine := fake.New()
	s := startSession(t, engine, recognition.Options{Capacity: 3})

	emit(t, engine, recognition.NewSoundStartEvent())
	for i := 0; i < 4; i++ {
		emit(t, engine, recognition.NewRecognizedEvent(fmt.Sprintf("p%d", i)))
	}
	s.Drain()

	want := []string{"p0", "p1", "p2"}
	if got := s.Results(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Results() = %v, want %v", got, want)
	}
	if s.Stats().Dropped != 1 {
		t.Fatalf("expected 1 dropped phrase, got %d", s.Stats().Dropped)
	}
}

func TestDrain_DefaultCapacity(t *testing.T) {
	engine := fake.New()
	s := startSession(t, engine, recognition.Options{})

	emit(t, engine, recognition.NewSoundStartEvent())
	for i := 0; i <= recognition.DefaultCapacity; i++ {
		emit(t, engine, recognition.NewRecognizedEvent(fmt.Sprintf("p%d", i)))
	}
	s.Drain()

	if got := len(s.Results()); got != recognition.DefaultCapacity {
		t.Fatalf("expected %d results, got %d", recognition.DefaultCapacity, got)
	}
}

func TestDrain_SoundStartResetsBuffer(t *testing.T) {
	engine := fake.New()
	s := startSession(t, engine, recognition.Options{})

	emit(t, engine,
		recognition.NewSoundStartEvent(),
		recognition.NewRecognizedEvent("hello"),
		recognition.NewRecognizedEvent("world"),
		recognition.NewSoundEndEvent(),
	)
	s.Drain()
	if s.Render() != "hello world" {
		t.Fatalf("Render() = %q, want %q", s.Render(), "hello world")
	}

	emit(t, engine, recognition.NewSoundStartEvent())
	s.Drain()
	if s.Render() != "" {
		t.Fatalf("expected buffer reset on SoundStart, got %q", s.Render())
	}
}

func TestDrain_UnrecognizedInterval(t *testing.T) {
	engine := fake.New()
	s := startSession(t, engine, recognition.Options{})

	emit(t, engine,
		recognition.NewSoundStartEvent(),
		recognition.NewSoundEndEvent(),
		recognition.NewSoundStartEvent(),
		recognition.NewRecognizedEvent("ok"),
		recognition.NewSoundEndEvent(),
	)
	s.Drain()

	stats := s.Stats()
	if stats.Unrecognized != 1 {
		t.Fatalf("expected 1 unrecognized interval, got %d", stats.Unrecognized)
	}
	if stats.Events != 5 {
		t.Fatalf("expected 5 events, got %d", stats.Events)
	}
}

func TestDrain_EventsAfterDrainWaitForNextTick(t *testing.T) {
	engine := fake.New()
	s := startSession(t, engine, recognition.Options{})

	emit(t, engine, recognition.NewSoundStartEvent(), recognition.NewRecognizedEvent("turn on lights"))
	if !s.Drain() {
		t.Fatal("expected sound active after first drain")
	}
	if s.Render() != "turn on lights" {
		t.Fatalf("Render() = %q", s.Render())
	}

	emit(t, engine, recognition.NewSoundEndEvent())
	if s.Render() != "turn on lights" {
		t.Fatal("render must be stable until the next drain")
	}
	if s.Drain() {
		t.Fatal("expected sound inactive after SoundEnd")
	}
	if s.Render() != "turn on lights" {
		t.Fatalf("SoundEnd must not clear results, got %q", s.Render())
	}
}

func TestStop_Idempotent(t *testing.T) {
	engine := fake.New()
	s, err := recognition.Start(context.Background(), engine, recognition.Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	emit(t, engine, recognition.NewSoundStartEvent(), recognition.NewRecognizedEvent("hi"))
	s.Drain()

	if err := s.Stop(); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	calls := len(engine.Calls())
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if len(engine.Calls()) != calls {
		t.Fatal("second Stop() must not release again")
	}

	if s.Drain() || s.SoundActive() {
		t.Fatal("stopped session must report no sound")
	}
	if s.Render() != "" {
		t.Fatalf("stopped session must render empty, got %q", s.Render())
	}

	var nilSession *recognition.Session
	if err := nilSession.Stop(); err != nil {
		t.Fatalf("nil Stop() error = %v", err)
	}
	if nilSession.Drain() || nilSession.Render() != "" {
		t.Fatal("nil session must produce no signal")
	}
}

func TestWakerCalledOnPush(t *testing.T) {
	engine := fake.New()
	woken := 0
	s := startSession(t, engine, recognition.Options{
		Waker: recognition.WakerFunc(func() { woken++ }),
	})

	emit(t, engine, recognition.NewSoundStartEvent(), recognition.NewSoundEndEvent())
	if woken != 2 {
		t.Fatalf("expected 2 wake-ups, got %d", woken)
	}
	s.Drain()
}
