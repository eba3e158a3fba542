package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/liuscraft/voicecontrol/internal/logging"
)

// Config 麦克风参数
type Config struct {
	SampleRate  int
	Channels    int
	BufferSize  int
	DeviceName  string
	HighLatency bool
}

func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		Channels:   1,
		BufferSize: 3200,
	}
}

type audioStream interface {
	Start() error
	Read() error
	Abort() error
	Stop() error
	Close() error
}

// Microphone is a PCM16 input stream on the default (or named) capture device.
type Microphone struct {
	stream    audioStream
	buffer    []int16
	cfg       Config
	terminate func() error

	closeCh   chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	startErr  error
}

// OpenMicrophone initializes PortAudio and opens the capture stream. The stream
// starts lazily on the first Read. Close terminates PortAudio again.
func OpenMicrophone(cfg Config) (*Microphone, error) {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	buffer := make([]int16, cfg.BufferSize)
	stream, err := openStream(cfg, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	logging.Infof("Microphone: opened (sampleRate=%d, channels=%d, bufferSize=%d, device=%q)",
		cfg.SampleRate, cfg.Channels, cfg.BufferSize, cfg.DeviceName)

	m := newMicrophone(stream, buffer, cfg)
	m.terminate = portaudio.Terminate
	return m, nil
}

func openStream(cfg Config, buffer []int16) (*portaudio.Stream, error) {
	var device *portaudio.DeviceInfo
	if cfg.DeviceName != "" {
		found, err := findInputDevice(cfg.DeviceName)
		if err != nil {
			logging.Warnf("Microphone: %v, falling back to default", err)
		}
		device = found
	}
	if device == nil {
		def, err := portaudio.DefaultInputDevice()
		if err != nil {
			logging.Warnf("Microphone: no default input device info: %v", err)
			return portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), len(buffer), &buffer)
		}
		device = def
	}

	latency := device.DefaultLowInputLatency
	if cfg.HighLatency {
		latency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: len(buffer),
	}
	stream, err := portaudio.OpenStream(params, &buffer)
	if err != nil {
		return nil, fmt.Errorf("open input stream on %q: %w", device.Name, err)
	}
	return stream, nil
}

// findInputDevice matches a capture device by case-insensitive substring.
func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(name)
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), lower) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no input device found matching %q", name)
}

func newMicrophone(stream audioStream, buffer []int16, cfg Config) *Microphone {
	return &Microphone{
		stream:  stream,
		buffer:  buffer,
		cfg:     cfg,
		closeCh: make(chan struct{}),
	}
}

func (m *Microphone) SampleRate() int { return m.cfg.SampleRate }

func (m *Microphone) start() error {
	m.startOnce.Do(func() {
		if err := m.stream.Start(); err != nil {
			m.startErr = fmt.Errorf("start input stream: %w", err)
		}
	})
	return m.startErr
}

// Read blocks for one buffer of little-endian PCM16. It returns io.EOF after Close
// and ctx.Err() on cancellation; both abort the pending device read.
func (m *Microphone) Read(ctx context.Context) ([]byte, error) {
	if err := m.start(); err != nil {
		return nil, err
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- m.stream.Read()
	}()

	select {
	case <-ctx.Done():
		m.abort("context canceled")
		return nil, ctx.Err()
	case <-m.closeCh:
		m.abort("source closed")
		return nil, io.EOF
	case err := <-readErr:
		if err != nil {
			select {
			case <-m.closeCh:
				return nil, io.EOF
			default:
			}
			return nil, err
		}
	}

	out := make([]byte, len(m.buffer)*2)
	for i, v := range m.buffer {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out, nil
}

// Close stops the stream. Safe to call more than once.
func (m *Microphone) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.closeCh)
		if stopErr := m.stream.Stop(); stopErr != nil {
			logging.Debugf("Microphone: stop stream: %v", stopErr)
		}
		err = m.stream.Close()
		if m.terminate != nil {
			if termErr := m.terminate(); termErr != nil && err == nil {
				err = termErr
			}
		}
		logging.Infof("Microphone: closed")
	})
	return err
}

func (m *Microphone) abort(reason string) {
	if err := m.stream.Abort(); err != nil {
		logging.Errorf("Microphone: error aborting stream (%s): %v", reason, err)
	}
}
