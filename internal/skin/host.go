package skin

import (
	"strings"

	"github.com/liuscraft/voicecontrol/internal/logging"
	"github.com/liuscraft/voicecontrol/internal/recognition"
	"github.com/liuscraft/voicecontrol/internal/voicecontrol"
)

// Waker coalesces wake signals into a 1-buffered channel.
type Waker struct {
	ch chan struct{}
}

func NewWaker() *Waker {
	return &Waker{ch: make(chan struct{}, 1)}
}

// Wake never blocks; a pending signal absorbs later ones.
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *Waker) C() <-chan struct{} {
	return w.ch
}

// measureHost serves one measure's options out of the skin file.
type measureHost struct {
	skin    *File
	name    string
	options map[string]string
	waker   *Waker
	log     *logging.Scoped
}

func newMeasureHost(f *File, options map[string]string, waker *Waker) *measureHost {
	name := strings.TrimSpace(lookup(options, "name"))
	return &measureHost{
		skin:    f,
		name:    name,
		options: options,
		waker:   waker,
		log:     logging.With("skin", f.Name, "measure", name),
	}
}

func (h *measureHost) Scope() voicecontrol.Scope {
	return voicecontrol.Scope(h.skin.path)
}

func (h *measureHost) MeasureName() string { return h.name }

func (h *measureHost) ReadString(key, def string) string {
	if v := strings.TrimSpace(lookup(h.options, key)); v != "" {
		return v
	}
	return def
}

func (h *measureHost) ReadPath(key, def string) string {
	v := h.ReadString(key, "")
	if v == "" {
		return def
	}
	return h.skin.Resolve(v)
}

func (h *measureHost) LogError(msg string) { h.log.Errorf("%s", msg) }
func (h *measureHost) LogDebug(msg string) { h.log.Debugf("%s", msg) }

func (h *measureHost) Waker() recognition.Waker {
	if h.waker == nil {
		return nil
	}
	return h.waker
}
