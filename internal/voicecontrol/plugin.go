package voicecontrol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liuscraft/voicecontrol/internal/grammar"
	"github.com/liuscraft/voicecontrol/internal/recognition"
)

// Config 插件配置
type Config struct {
	Capacity  int
	QueueSize int
}

// Plugin is the host-facing surface. One Plugin owns one Registry, so parents
// from unrelated host instances never see each other.
type Plugin struct {
	engine   recognition.Engine
	registry *Registry
	cfg      Config
}

func NewPlugin(engine recognition.Engine, cfg Config) *Plugin {
	if cfg.Capacity <= 0 {
		cfg.Capacity = recognition.DefaultCapacity
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = recognition.DefaultQueueSize
	}
	return &Plugin{
		engine:   engine,
		registry: NewRegistry(),
		cfg:      cfg,
	}
}

func (p *Plugin) Registry() *Registry {
	return p.registry
}

// Create builds a measure for host. It never fails: any problem is logged
// through the host and the measure degrades to producing no signal.
func (p *Plugin) Create(ctx context.Context, host Host) *Measure {
	m := newMeasure(host.MeasureName(), host.Scope())

	if parentName := strings.TrimSpace(host.ReadString(OptionParent, "")); parentName != "" {
		if parent, ok := p.registry.Resolve(parentName, m.scope); ok {
			m.parent = parent
			m.state.Transition(StateChildLinked)
			m.log.Debugf("Measure: linked to parent %q", parent.name)
			return m
		}

		err := &ParentNotFoundError{Name: parentName}
		host.LogError(err.Error())
		m.state.Transition(StateUnlinked)
		return m
	}

	p.registry.Register(m)
	m.state.Transition(StateParentActive)

	grammarFile := host.ReadPath(OptionGrammarFile, "")
	host.LogDebug("Initializing speech recognizer device.")

	session, err := recognition.Start(ctx, p.engine, recognition.Options{
		GrammarFile: grammarFile,
		Capacity:    p.cfg.Capacity,
		QueueSize:   p.cfg.QueueSize,
		Waker:       host.Waker(),
	})
	if err != nil {
		host.LogError(startErrorMessage(grammarFile, err))
		return m
	}
	m.session = session
	if grammarFile == "" {
		m.log.Debugf("Measure: speech recognizer ready (dictation)")
	} else {
		m.log.Debugf("Measure: speech recognizer ready (grammar=%s)", session.GrammarFile())
	}
	return m
}

// Reload re-reads the keyword. It never touches the session.
func (p *Plugin) Reload(m *Measure, host Host) error {
	if m.State() == StateReleased {
		return ErrReleased
	}
	m.keyword = strings.TrimSpace(host.ReadString(OptionKeyword, ""))
	return nil
}

// Poll drains a parent's session and returns 1 while sound is active. Children
// read their parent's state as of the parent's last poll.
func (p *Plugin) Poll(m *Measure) float64 {
	if m.State() == StateParentActive {
		m.session.Drain()
	}
	if m.value() {
		return 1.0
	}
	return 0.0
}

// Text returns the recognized phrases joined by a space.
func (p *Plugin) Text(m *Measure) string {
	return m.text()
}

// Destroy releases a parent's session or unlinks a child. Calling it twice is a no-op.
func (p *Plugin) Destroy(m *Measure) {
	switch m.State() {
	case StateReleased:
		return
	case StateParentActive:
		stats := m.session.Stats()
		if err := m.session.Stop(); err != nil {
			m.log.Warnf("Measure: error releasing speech recognizer: %v", err)
		}
		if m.session != nil {
			m.log.Infof("Measure: speech recognizer released (%s)", stats)
		}
		m.session = nil
		p.registry.Unregister(m)
	case StateChildLinked:
		m.parent = nil
	}
	m.state.Transition(StateReleased)
}

func startErrorMessage(grammarFile string, err error) string {
	var engineErr *recognition.EngineError
	if errors.As(err, &engineErr) && engineErr.Stage == recognition.StageLoadGrammar && grammarFile != "" {
		return fmt.Sprintf("Error loading grammar file '%s' (code: 0x%08x): %v. %s",
			grammarFile, uint32(engineErr.Code), engineErr.Err, grammar.FormatHelp)
	}
	return fmt.Sprintf("Couldn't initialize speech recognizer: %v", err)
}
