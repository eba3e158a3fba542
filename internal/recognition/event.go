package recognition

import (
	"fmt"
	"time"
)

// EventKind 识别事件类型
type EventKind int

const (
	SoundStart EventKind = iota + 1
	SoundEnd
	Recognized
)

func (k EventKind) String() string {
	switch k {
	case SoundStart:
		return "SoundStart"
	case SoundEnd:
		return "SoundEnd"
	case Recognized:
		return "Recognized"
	default:
		return "Unknown"
	}
}

// Event is a single engine notification. Text is only set for Recognized.
type Event struct {
	Kind EventKind
	Text string
	At   time.Time
}

func NewSoundStartEvent() Event {
	return Event{Kind: SoundStart, At: time.Now()}
}

func NewSoundEndEvent() Event {
	return Event{Kind: SoundEnd, At: time.Now()}
}

func NewRecognizedEvent(text string) Event {
	return Event{Kind: Recognized, Text: text, At: time.Now()}
}

func (e Event) String() string {
	if e.Kind == Recognized {
		return fmt.Sprintf("%s(%q)", e.Kind, e.Text)
	}
	return e.Kind.String()
}
