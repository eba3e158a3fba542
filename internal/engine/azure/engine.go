//go:build azure

package azure

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/liuscraft/voicecontrol/internal/grammar"
	"github.com/liuscraft/voicecontrol/internal/logging"
	"github.com/liuscraft/voicecontrol/internal/recognition"
)

var (
	ErrCredentialsRequired = errors.New("azure engine requires subscription_key and region")
	errNoRecognizer        = errors.New("audio input must be bound before loading a grammar")
)

type Config struct {
	SubscriptionKey string
	Region          string
	Language        string
}

type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if cfg.SubscriptionKey == "" || cfg.Region == "" {
		return nil, ErrCredentialsRequired
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Name() string { return "azure" }

// Acquire creates the speech configuration for the subscription.
func (e *Engine) Acquire(ctx context.Context) (recognition.Recognizer, error) {
	cnf, err := speech.NewSpeechConfigFromSubscription(e.cfg.SubscriptionKey, e.cfg.Region)
	if err != nil {
		return nil, err
	}
	if err := cnf.SetSpeechRecognitionLanguage(e.cfg.Language); err != nil {
		cnf.Close()
		return nil, err
	}
	return &recognizer{config: cnf}, nil
}

type recognizer struct {
	config *speech.SpeechConfig

	mu            sync.Mutex
	queue         *recognition.EventQueue
	audioConfig   *audio.AudioConfig
	speech        *speech.SpeechRecognizer
	filter        *grammar.Command
	grammarActive bool
	running       bool
}

func (r *recognizer) NewContext(queue *recognition.EventQueue) (recognition.Context, error) {
	if queue == nil {
		return nil, errors.New("event queue is nil")
	}
	r.mu.Lock()
	r.queue = queue
	r.mu.Unlock()
	return &recoContext{r: r}, nil
}

// BindDefaultAudio opens the default microphone and creates the SDK recognizer on it.
func (r *recognizer) BindDefaultAudio(ctx context.Context) (recognition.AudioInput, error) {
	audioConfig, err := audio.NewAudioConfigFromDefaultMicrophoneInput()
	if err != nil {
		return nil, fmt.Errorf("open default microphone: %w", err)
	}

	sr, err := speech.NewSpeechRecognizerFromConfig(r.config, audioConfig)
	if err != nil {
		audioConfig.Close()
		return nil, fmt.Errorf("create speech recognizer: %w", err)
	}

	sr.SpeechStartDetected(func(e speech.RecognitionEventArgs) {
		defer e.Close()
		r.push(recognition.NewSoundStartEvent())
	})
	sr.SpeechEndDetected(func(e speech.RecognitionEventArgs) {
		defer e.Close()
		r.push(recognition.NewSoundEndEvent())
	})
	sr.Recognized(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		if text, ok := r.accept(e.Result.Text); ok {
			r.push(recognition.NewRecognizedEvent(text))
		}
	})
	sr.Canceled(func(e speech.SpeechRecognitionCanceledEventArgs) {
		defer e.Close()
		logging.Errorf("Azure: recognition canceled: %v", e.ErrorDetails)
	})

	r.mu.Lock()
	r.audioConfig = audioConfig
	r.speech = sr
	r.mu.Unlock()
	return &audioInput{r: r}, nil
}

func (r *recognizer) SetActive(ctx context.Context, active bool) error {
	r.mu.Lock()
	sr := r.speech
	running := r.running
	r.mu.Unlock()
	if sr == nil {
		return errors.New("audio input not bound")
	}
	if active == running {
		return nil
	}

	var done chan error
	if active {
		done = sr.StartContinuousRecognitionAsync()
	} else {
		done = sr.StopContinuousRecognitionAsync()
	}
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = active
	r.mu.Unlock()
	if active {
		logging.Infof("Azure: continuous recognition started")
	}
	return nil
}

func (r *recognizer) Release() error {
	r.mu.Lock()
	cnf := r.config
	r.config = nil
	r.mu.Unlock()
	if cnf != nil {
		cnf.Close()
	}
	return nil
}

func (r *recognizer) accept(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.grammarActive {
		return "", false
	}
	if r.filter == nil {
		return text, true
	}
	return r.filter.Match(text)
}

func (r *recognizer) push(event recognition.Event) {
	r.mu.Lock()
	queue := r.queue
	r.mu.Unlock()
	if queue != nil {
		queue.Push(event)
	}
}

type recoContext struct {
	r *recognizer
}

// LoadCommandGrammar biases the recognizer towards the grammar's phrases and
// only reports results that match one of them.
func (c *recoContext) LoadCommandGrammar(path string) (recognition.Grammar, error) {
	cmd, err := grammar.LoadFile(path)
	if err != nil {
		return nil, err
	}

	c.r.mu.Lock()
	sr := c.r.speech
	c.r.mu.Unlock()
	if sr == nil {
		return nil, errNoRecognizer
	}

	phrases, err := speech.NewPhraseListGrammarFromRecognizer(sr)
	if err != nil {
		return nil, fmt.Errorf("create phrase list: %w", err)
	}
	for _, p := range cmd.Phrases {
		if err := phrases.AddPhrase(p); err != nil {
			phrases.Close()
			return nil, fmt.Errorf("add phrase %q: %w", p, err)
		}
	}
	return &grammarHandle{r: c.r, cmd: cmd, phrases: phrases}, nil
}

func (c *recoContext) LoadDictation() (recognition.Grammar, error) {
	return &grammarHandle{r: c.r}, nil
}

func (c *recoContext) Release() error {
	c.r.mu.Lock()
	c.r.queue = nil
	c.r.mu.Unlock()
	return nil
}

type grammarHandle struct {
	r       *recognizer
	cmd     *grammar.Command
	phrases *speech.PhraseListGrammar
}

func (g *grammarHandle) Activate() error {
	g.r.mu.Lock()
	g.r.filter = g.cmd
	g.r.grammarActive = true
	g.r.mu.Unlock()
	return nil
}

func (g *grammarHandle) Release() error {
	g.r.mu.Lock()
	g.r.filter = nil
	g.r.grammarActive = false
	g.r.mu.Unlock()

	if g.phrases != nil {
		err := g.phrases.Clear()
		g.phrases.Close()
		g.phrases = nil
		return err
	}
	return nil
}

type audioInput struct {
	r *recognizer
}

// Release stops recognition and closes the SDK recognizer and the microphone.
func (a *audioInput) Release() error {
	a.r.mu.Lock()
	sr, audioConfig, running := a.r.speech, a.r.audioConfig, a.r.running
	a.r.speech, a.r.audioConfig, a.r.running = nil, nil, false
	a.r.mu.Unlock()

	var err error
	if sr != nil {
		if running {
			err = <-sr.StopContinuousRecognitionAsync()
		}
		sr.Close()
	}
	if audioConfig != nil {
		audioConfig.Close()
	}
	return err
}
