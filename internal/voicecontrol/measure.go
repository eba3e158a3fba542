package voicecontrol

import (
	"strings"

	"github.com/google/uuid"
	"github.com/liuscraft/voicecontrol/internal/grammar"
	"github.com/liuscraft/voicecontrol/internal/logging"
	"github.com/liuscraft/voicecontrol/internal/recognition"
)

// Measure is one plugin instance. A parent owns a recognition session; a child
// points at a parent without owning it and filters the parent's results by keyword.
type Measure struct {
	id    string
	name  string
	scope Scope

	parent  *Measure
	session *recognition.Session
	keyword string

	state *StateMachine
	log   *logging.Scoped
}

func newMeasure(name string, scope Scope) *Measure {
	id := uuid.NewString()
	return &Measure{
		id:    id,
		name:  name,
		scope: scope,
		state: NewStateMachine(),
		log:   logging.With("skin", string(scope), "measure", name, "measure_id", id),
	}
}

func (m *Measure) ID() string      { return m.id }
func (m *Measure) Name() string    { return m.name }
func (m *Measure) Scope() Scope    { return m.scope }
func (m *Measure) Keyword() string { return m.keyword }

func (m *Measure) State() State {
	return m.state.GetCurrentState()
}

// Parent returns the linked parent, or nil for parents and unlinked children.
func (m *Measure) Parent() *Measure {
	return m.parent
}

// Session returns the owned session. It is nil for children and for parents whose engine failed to start.
func (m *Measure) Session() *recognition.Session {
	return m.session
}

// value 返回当前触发信号
func (m *Measure) value() bool {
	switch m.State() {
	case StateParentActive:
		return m.session.SoundActive()
	case StateChildLinked:
		parent := m.liveParent()
		if parent == nil {
			return false
		}
		if m.keyword == "" {
			return parent.session.SoundActive()
		}
		return len(matchKeyword(parent.session.Results(), m.keyword)) > 0
	default:
		return false
	}
}

func (m *Measure) text() string {
	switch m.State() {
	case StateParentActive:
		return m.session.Render()
	case StateChildLinked:
		parent := m.liveParent()
		if parent == nil {
			return ""
		}
		if m.keyword == "" {
			return parent.session.Render()
		}
		return strings.Join(matchKeyword(parent.session.Results(), m.keyword), " ")
	default:
		return ""
	}
}

// liveParent returns nil once the parent has been released; the child then
// produces no signal instead of reading a dead session.
func (m *Measure) liveParent() *Measure {
	if m.parent == nil || m.parent.State() != StateParentActive {
		return nil
	}
	return m.parent
}

// matchKeyword returns the phrases containing keyword as whole words, ignoring case and punctuation.
func matchKeyword(phrases []string, keyword string) []string {
	kw := grammar.Normalize(keyword)
	if kw == "" {
		return nil
	}
	needle := " " + kw + " "

	var out []string
	for _, p := range phrases {
		if strings.Contains(" "+grammar.Normalize(p)+" ", needle) {
			out = append(out, p)
		}
	}
	return out
}
