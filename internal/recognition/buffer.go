package recognition

import "strings"

// DefaultCapacity is the number of phrases kept per sound interval.
const DefaultCapacity = 8

// ResultBuffer holds the first N phrases recognized since the last sound start.
type ResultBuffer struct {
	phrases  []string
	capacity int
}

func NewResultBuffer(capacity int) *ResultBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ResultBuffer{
		phrases:  make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a phrase. It returns false and keeps the buffer unchanged once full.
func (b *ResultBuffer) Add(phrase string) bool {
	if b.Full() {
		return false
	}
	b.phrases = append(b.phrases, phrase)
	return true
}

func (b *ResultBuffer) Reset() {
	b.phrases = b.phrases[:0]
}

func (b *ResultBuffer) Len() int {
	return len(b.phrases)
}

func (b *ResultBuffer) Cap() int {
	return b.capacity
}

func (b *ResultBuffer) Full() bool {
	return len(b.phrases) >= b.capacity
}

// Phrases returns a copy, oldest first.
func (b *ResultBuffer) Phrases() []string {
	out := make([]string, len(b.phrases))
	copy(out, b.phrases)
	return out
}

// String joins the phrases with a single space.
func (b *ResultBuffer) String() string {
	return strings.Join(b.phrases, " ")
}
