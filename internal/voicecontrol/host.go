package voicecontrol

import "github.com/liuscraft/voicecontrol/internal/recognition"

// Option keys read from the host.
const (
	OptionParent      = "Parent"
	OptionGrammarFile = "GrammarFile"
	OptionKeyword     = "Keyword"
)

// Scope identifies the host container (a skin) that owns a measure.
// Parents are only resolvable from measures in the same scope.
type Scope string

// Host is what a measure needs from the dashboard application hosting it.
type Host interface {
	Scope() Scope
	MeasureName() string
	ReadString(key, def string) string
	// ReadPath reads an option and resolves it against the host's resource directory.
	ReadPath(key, def string) string
	LogError(msg string)
	LogDebug(msg string)
	// Waker receives a signal when recognition events are pending.
	Waker() recognition.Waker
}
