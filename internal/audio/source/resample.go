package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// FrameReader yields PCM16 little-endian frames.
type FrameReader interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Resampler 把 FrameReader 的每一帧转换到目标采样率
type Resampler struct {
	src      FrameReader
	inRate   int
	outRate  int
	channels int
}

// NewResampler wraps src. Equal rates pass frames through untouched.
func NewResampler(src FrameReader, inRate, outRate, channels int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: input=%d, output=%d", inRate, outRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channels: %d", channels)
	}
	return &Resampler{src: src, inRate: inRate, outRate: outRate, channels: channels}, nil
}

func (r *Resampler) Read(ctx context.Context) ([]byte, error) {
	data, err := r.src.Read(ctx)
	if err != nil || r.inRate == r.outRate {
		return data, err
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	out := ResampleLinear(samples, r.inRate, r.outRate, r.channels)

	buf := make([]byte, len(out)*2)
	for i, s := range out {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf, nil
}

func (r *Resampler) Close() error {
	return r.src.Close()
}

// ResampleLinear 线性插值重采样，input 为交错的多声道样本
func ResampleLinear(input []int16, inRate, outRate, channels int) []int16 {
	frames := len(input) / channels
	if frames == 0 {
		return []int16{}
	}
	if inRate == outRate {
		return append([]int16(nil), input[:frames*channels]...)
	}

	ratio := float64(inRate) / float64(outRate)
	outFrames := int(math.Ceil(float64(frames) / ratio))
	out := make([]int16, outFrames*channels)

	for f := 0; f < outFrames; f++ {
		pos := float64(f) * ratio
		i := int(pos)
		frac := pos - float64(i)
		if i >= frames-1 {
			i = max(frames-2, 0)
			frac = 1.0
		}
		next := min(i+1, frames-1)

		for ch := 0; ch < channels; ch++ {
			a := float64(input[i*channels+ch])
			b := float64(input[next*channels+ch])
			v := a*(1-frac) + b*frac
			out[f*channels+ch] = int16(math.Max(math.Min(v, math.MaxInt16), math.MinInt16))
		}
	}
	return out
}
