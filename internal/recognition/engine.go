package recognition

import "context"

// Engine 语音识别引擎，负责创建识别器
type Engine interface {
	Name() string
	Acquire(ctx context.Context) (Recognizer, error)
}

// Recognizer is a live connection to the engine.
type Recognizer interface {
	// NewContext binds the event queue. The recognizer delivers only
	// SoundStart, SoundEnd and Recognized events into it.
	NewContext(queue *EventQueue) (Context, error)
	BindDefaultAudio(ctx context.Context) (AudioInput, error)
	// SetActive switches continuous recognition on or off.
	SetActive(ctx context.Context, active bool) error
	Release() error
}

// Context owns grammars created against a recognizer.
type Context interface {
	LoadCommandGrammar(path string) (Grammar, error)
	LoadDictation() (Grammar, error)
	Release() error
}

type Grammar interface {
	Activate() error
	Release() error
}

type AudioInput interface {
	Release() error
}
