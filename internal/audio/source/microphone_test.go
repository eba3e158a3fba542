package source

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type blockingStream struct {
	readStarted chan struct{}
	abortCalled chan struct{}
	closed      int
}

func newBlockingStream() *blockingStream {
	return &blockingStream{
		readStarted: make(chan struct{}),
		abortCalled: make(chan struct{}),
	}
}

func (s *blockingStream) Start() error { return nil }

func (s *blockingStream) Read() error {
	close(s.readStarted)
	<-s.abortCalled
	return errors.New("aborted")
}

func (s *blockingStream) Abort() error {
	select {
	case <-s.abortCalled:
	default:
		close(s.abortCalled)
	}
	return nil
}

func (s *blockingStream) Stop() error  { return nil }
func (s *blockingStream) Close() error { s.closed++; return nil }

type sampleStream struct {
	buffer []int16
	values []int16
}

func (s *sampleStream) Start() error { return nil }
func (s *sampleStream) Read() error {
	copy(s.buffer, s.values)
	return nil
}
func (s *sampleStream) Abort() error { return nil }
func (s *sampleStream) Stop() error  { return nil }
func (s *sampleStream) Close() error { return nil }

func TestMicrophoneReadCanceled(t *testing.T) {
	stream := newBlockingStream()
	mic := newMicrophone(stream, make([]int16, 160), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := mic.Read(ctx)
		errCh <- err
	}()

	<-stream.readStarted
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Read should return after context cancellation")
	}

	select {
	case <-stream.abortCalled:
	default:
		t.Fatal("expected Abort to be called on context cancellation")
	}
}

func TestMicrophoneReadAfterClose(t *testing.T) {
	stream := newBlockingStream()
	mic := newMicrophone(stream, make([]int16, 160), DefaultConfig())

	errCh := make(chan error, 1)
	go func() {
		_, err := mic.Read(context.Background())
		errCh <- err
	}()

	<-stream.readStarted
	if err := mic.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := mic.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Read should return after Close")
	}
	if stream.closed != 1 {
		t.Fatalf("expected stream to be closed once, got %d", stream.closed)
	}
}

func TestMicrophoneReadEncodesPCM16(t *testing.T) {
	buffer := make([]int16, 2)
	stream := &sampleStream{buffer: buffer, values: []int16{1, -2}}
	mic := newMicrophone(stream, buffer, DefaultConfig())

	data, err := mic.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []byte{0x01, 0x00, 0xfe, 0xff}
	if string(data) != string(want) {
		t.Fatalf("Read() = %v, want %v", data, want)
	}
}
