package writer

import (
	"sync"
	"time"

	"lifeline/pkg/clock"
	"lifeline/pkg/consumer"
)

// Batch is one unit of work for the writer: the progress rows to upsert and the messages
// whose offsets may be committed once they are stored.
type Batch struct {
	Records  []ProgressRecord
	Messages []consumer.Message
}

// Len returns the number of buffered events.
func (b Batch) Len() int { return len(b.Messages) }

// LastOffset is the offset of the newest message, or -1 for an empty batch.
func (b Batch) LastOffset() int64 {
	if len(b.Messages) == 0 {
		return -1
	}
	return b.Messages[len(b.Messages)-1].Offset
}

// BatchBuffer collects progress events for one worker until they are due for a write.
type BatchBuffer interface {
	// Add buffers rec and reports whether the buffer reached its limit.
	Add(rec ProgressRecord, msg consumer.Message) bool

	// Take hands over everything buffered and empties the buffer.
	Take() Batch

	Pending() int

	// Due reports whether the oldest pending event has waited at least maxAge.
	Due(maxAge time.Duration) bool
}

// ProgressBuffer is the slice-backed BatchBuffer. Age is measured from the first event that
// arrived after the last Take, so an idle worker never writes an empty batch.
type ProgressBuffer struct {
	mu     sync.Mutex
	clock  clock.Clock
	limit  int
	batch  Batch
	oldest time.Time
}

// NewProgressBuffer creates a buffer that asks for a write at limit events.
func NewProgressBuffer(limit int, c clock.Clock) *ProgressBuffer {
	if limit < 1 {
		limit = 1
	}
	if c == nil {
		c = clock.System{}
	}
	b := &ProgressBuffer{clock: c, limit: limit}
	b.reset()
	return b
}

func (b *ProgressBuffer) reset() {
	b.batch = Batch{
		Records:  make([]ProgressRecord, 0, b.limit),
		Messages: make([]consumer.Message, 0, b.limit),
	}
	b.oldest = time.Time{}
}

func (b *ProgressBuffer) Add(rec ProgressRecord, msg consumer.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.batch.Len() == 0 {
		b.oldest = b.clock.Now()
	}
	b.batch.Records = append(b.batch.Records, rec)
	b.batch.Messages = append(b.batch.Messages, msg)
	return b.batch.Len() >= b.limit
}

func (b *ProgressBuffer) Take() Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.batch
	b.reset()
	return out
}

func (b *ProgressBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batch.Len()
}

func (b *ProgressBuffer) Due(maxAge time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batch.Len() > 0 && b.clock.Now().Sub(b.oldest) >= maxAge
}
