// Package dashscope drives the DashScope realtime ASR websocket API as a
// recognition engine. Microphone audio is streamed up; sentence results come
// back and are turned into sound-start, recognized and sound-end events.
package dashscope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/liuscraft/voicecontrol/internal/audio/source"
	"github.com/liuscraft/voicecontrol/internal/grammar"
	"github.com/liuscraft/voicecontrol/internal/logging"
	"github.com/liuscraft/voicecontrol/internal/recognition"
)

const (
	defaultEndpoint     = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"
	defaultModel        = "fun-asr-realtime"
	defaultSampleRate   = 16000
	defaultStartTimeout = 10 * time.Second
)

var (
	ErrAPIKeyRequired = errors.New("DASHSCOPE_API_KEY is required")
	ErrNotStarted     = errors.New("recognition task not started")
)

type Config struct {
	APIKey       string
	Endpoint     string
	Model        string
	SampleRate   int
	Audio        source.Config
	StartTimeout time.Duration
}

// AudioSource yields PCM16 frames until closed.
type AudioSource interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

type AudioOpener func(cfg source.Config) (AudioSource, error)

// TaskError is a task-failed event from the service.
type TaskError struct {
	Code    string
	Message string
}

func (e *TaskError) Error() string {
	if e.Message == "" {
		return "task failed"
	}
	return fmt.Sprintf("task failed: %s %s", e.Code, e.Message)
}

type Engine struct {
	cfg       Config
	dialer    *websocket.Dialer
	openAudio AudioOpener
}

func New(cfg Config) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = cfg.SampleRate
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}

	return &Engine{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		openAudio: func(c source.Config) (AudioSource, error) {
			mic, err := source.OpenMicrophone(c)
			if err != nil {
				return nil, err
			}
			return mic, nil
		},
	}, nil
}

// WithAudioOpener replaces the microphone, mainly for tests.
func (e *Engine) WithAudioOpener(open AudioOpener) *Engine {
	e.openAudio = open
	return e
}

func (e *Engine) Name() string { return "dashscope" }

// Acquire opens the websocket connection.
func (e *Engine) Acquire(ctx context.Context) (recognition.Recognizer, error) {
	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", e.cfg.APIKey))

	conn, _, err := e.dialer.DialContext(ctx, e.cfg.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", e.cfg.Endpoint, err)
	}

	r := &recognizer{
		cfg:       e.cfg,
		openAudio: e.openAudio,
		conn:      conn,
		startedCh: make(chan struct{}),
		doneCh:    make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	r.startReceiver()
	return r, nil
}

type recognizer struct {
	cfg       Config
	openAudio AudioOpener
	conn      *websocket.Conn
	writeMu   sync.Mutex
	taskID    string

	mu            sync.Mutex
	queue         *recognition.EventQueue
	audio         AudioSource
	filter        *grammar.Command
	grammarActive bool
	pumpCancel    context.CancelFunc

	// receiver goroutine only
	inSentence bool

	startedCh   chan struct{}
	doneCh      chan struct{}
	errCh       chan error
	startedOnce sync.Once
	doneOnce    sync.Once
	releaseOnce sync.Once
	wg          sync.WaitGroup
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

func (r *recognizer) BindDefaultAudio(ctx context.Context) (recognition.AudioInput, error) {
	audio, err := r.openAudio(r.cfg.Audio)
	if err != nil {
		return nil, err
	}
	if r.cfg.Audio.SampleRate != r.cfg.SampleRate {
		channels := max(r.cfg.Audio.Channels, 1)
		resampled, err := source.NewResampler(audio, r.cfg.Audio.SampleRate, r.cfg.SampleRate, channels)
		if err != nil {
			audio.Close()
			return nil, err
		}
		logging.Debugf("DashScope: resampling microphone %dHz -> %dHz", r.cfg.Audio.SampleRate, r.cfg.SampleRate)
		audio = resampled
	}
	r.mu.Lock()
	r.audio = audio
	r.mu.Unlock()
	return &audioInput{r: r}, nil
}

// SetActive starts (or finishes) the recognition task and the audio upload.
func (r *recognizer) SetActive(ctx context.Context, active bool) error {
	if !active {
		r.stopPump()
		if r.taskID == "" {
			return nil
		}
		return r.writeJSON(finishTask(r.taskID))
	}

	r.mu.Lock()
	audio := r.audio
	r.mu.Unlock()
	if audio == nil {
		return errors.New("audio input not bound")
	}

	r.taskID = newTaskID()
	if err := r.writeJSON(runTask(r.taskID, r.cfg.Model, r.cfg.SampleRate)); err != nil {
		return fmt.Errorf("send run-task: %w", err)
	}

	timer := time.NewTimer(r.cfg.StartTimeout)
	defer timer.Stop()
	select {
	case <-r.startedCh:
	case err := <-r.errCh:
		return err
	case <-r.doneCh:
		select {
		case err := <-r.errCh:
			return err
		default:
			return ErrNotStarted
		}
	case <-timer.C:
		return fmt.Errorf("wait for task-started: %w", context.DeadlineExceeded)
	case <-ctx.Done():
		return ctx.Err()
	}

	logging.Infof("DashScope: recognition task %s started (model=%s)", r.taskID, r.cfg.Model)
	r.startPump(audio)
	return nil
}

// Release finishes the task and closes the connection. Safe to call twice.
func (r *recognizer) Release() error {
	var err error
	r.releaseOnce.Do(func() {
		r.stopPump()
		if r.taskID != "" {
			if werr := r.writeJSON(finishTask(r.taskID)); werr != nil {
				logging.Debugf("DashScope: send finish-task: %v", werr)
			}
		}
		err = r.conn.Close()
		r.wg.Wait()
	})
	return err
}

func (r *recognizer) writeJSON(msg taskMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(websocket.TextMessage, payload)
}

func (r *recognizer) startPump(audio AudioSource) {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.pumpCancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			data, err := audio.Read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logging.Debugf("DashScope: audio pump stopped: %v", err)
				}
				return
			}
			r.writeMu.Lock()
			err = r.conn.WriteMessage(websocket.BinaryMessage, data)
			r.writeMu.Unlock()
			if err != nil {
				logging.Debugf("DashScope: send audio: %v", err)
				return
			}
		}
	}()
}

func (r *recognizer) stopPump() {
	r.mu.Lock()
	cancel := r.pumpCancel
	r.pumpCancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *recognizer) startReceiver() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.markDone()
		for {
			_, data, err := r.conn.ReadMessage()
			if err != nil {
				r.endSentence()
				return
			}
			var msg taskMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				r.setErr(err)
				r.endSentence()
				return
			}
			if r.handle(msg) {
				return
			}
		}
	}()
}

// handle maps a service event to recognition events. It returns true when the task is over.
func (r *recognizer) handle(msg taskMessage) bool {
	switch msg.Header.Event {
	case eventTaskStarted:
		r.startedOnce.Do(func() { close(r.startedCh) })
	case eventResultGenerated:
		if msg.Payload.Output == nil || msg.Payload.Output.Sentence == nil {
			return false
		}
		sentence := msg.Payload.Output.Sentence
		if sentence.Heartbeat || sentence.Text == "" {
			return false
		}
		if !r.inSentence {
			r.inSentence = true
			r.push(recognition.NewSoundStartEvent())
		}
		if sentence.SentenceEnd {
			if text, ok := r.accept(sentence.Text); ok {
				r.push(recognition.NewRecognizedEvent(text))
			}
			r.endSentence()
		}
	case eventTaskFinished:
		r.endSentence()
		return true
	case eventTaskFailed:
		err := &TaskError{Code: msg.Header.ErrorCode, Message: msg.Header.ErrorMessage}
		logging.Errorf("DashScope: %v", err)
		r.setErr(err)
		r.endSentence()
		return true
	}
	return false
}

func (r *recognizer) endSentence() {
	if r.inSentence {
		r.inSentence = false
		r.push(recognition.NewSoundEndEvent())
	}
}

// accept applies the active grammar. Dictation passes everything through; a
// command grammar only passes its own phrases.
func (r *recognizer) accept(text string) (string, bool) {
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

func (r *recognizer) setErr(err error) {
	select {
	case r.errCh <- err:
	default:
	}
}

func (r *recognizer) markDone() {
	r.doneOnce.Do(func() { close(r.doneCh) })
}

type recoContext struct {
	r *recognizer
}

func (c *recoContext) LoadCommandGrammar(path string) (recognition.Grammar, error) {
	cmd, err := grammar.LoadFile(path)
	if err != nil {
		return nil, err
	}
	logging.Debugf("DashScope: loaded %d grammar phrases from %s", len(cmd.Phrases), path)
	return &grammarHandle{r: c.r, cmd: cmd}, nil
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
	r   *recognizer
	cmd *grammar.Command
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
	return nil
}

type audioInput struct {
	r *recognizer
}

func (a *audioInput) Release() error {
	a.r.stopPump()
	a.r.mu.Lock()
	audio := a.r.audio
	a.r.audio = nil
	a.r.mu.Unlock()
	if audio == nil {
		return nil
	}
	return audio.Close()
}
