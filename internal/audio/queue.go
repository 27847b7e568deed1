// Package audio implements engine devices on top of pull-model audio
// players: ebiten, oto, and a WAV file writer.
package audio

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cbegin/oplstream-go/internal/engine"
)

var ErrClosed = errors.New("audio: device closed")

// Queue is a FIFO of submitted blocks read as one PCM byte stream. When
// the reader finishes a block its index is handed to the notifier on a
// goroutine owned by the queue.
type Queue struct {
	mu     sync.Mutex
	blocks []*engine.Block
	offset int
	halted bool

	drained chan int
	ready   chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	underruns atomic.Int64
	silent    atomic.Int64
	read      atomic.Int64
	dropped   atomic.Int64
}

func NewQueue(n engine.DrainNotifier) *Queue {
	q := &Queue{
		drained: make(chan int, 4),
		ready:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.notify(n)
	return q
}

func (q *Queue) notify(n engine.DrainNotifier) {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		case idx := <-q.drained:
			select {
			case <-q.stop:
				return
			default:
			}
			n.OnBlockDrained(idx)
		}
	}
}

// Submit implements engine.Device.
func (q *Queue) Submit(b *engine.Block) error {
	q.mu.Lock()
	if q.halted {
		q.mu.Unlock()
		return ErrClosed
	}
	q.blocks = append(q.blocks, b)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready is signalled after a Submit.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Buffered returns the number of unread bytes queued.
func (q *Queue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := -q.offset
	for _, b := range q.blocks {
		n += len(b.Bytes())
	}
	return n
}

// Read fills p from the queued blocks. It never blocks: when the queue runs
// dry the rest of p is silence and an underrun is counted.
func (q *Queue) Read(p []byte) (int, error) {
	var finished [2]int
	nf := 0

	q.mu.Lock()
	n := 0
	for n < len(p) && len(q.blocks) > 0 {
		head := q.blocks[0].Bytes()
		c := copy(p[n:], head[q.offset:])
		n += c
		q.offset += c
		if q.offset == len(head) {
			if nf < len(finished) {
				finished[nf] = q.blocks[0].Index()
				nf++
			}
			q.blocks[0] = nil
			q.blocks = q.blocks[1:]
			q.offset = 0
		}
	}
	halted := q.halted
	q.mu.Unlock()

	q.read.Add(int64(n))
	if n < len(p) {
		clear(p[n:])
		q.silent.Add(int64(len(p) - n))
		if !halted {
			q.underruns.Add(1)
		}
	}
	if halted {
		return len(p), nil
	}
	for i := 0; i < nf; i++ {
		select {
		case q.drained <- finished[i]:
		case <-q.stop:
			return len(p), nil
		default:
			q.dropped.Add(1)
		}
	}
	return len(p), nil
}

// Reset discards queued blocks and stops notifications. When it returns the
// notifier goroutine has exited.
func (q *Queue) Reset() error {
	q.mu.Lock()
	q.halted = true
	clear(q.blocks)
	q.blocks = nil
	q.offset = 0
	q.mu.Unlock()
	q.once.Do(func() { close(q.stop) })
	<-q.done
	return nil
}

func (q *Queue) Close() error { return q.Reset() }

// Stats is a snapshot of queue counters.
type Stats = engine.DeviceStats

var _ engine.StatsReporter = (*Queue)(nil)

func (q *Queue) Stats() Stats {
	return Stats{
		BytesRead:    q.read.Load(),
		SilentBytes:  q.silent.Load(),
		Underruns:    q.underruns.Load(),
		DroppedDrain: q.dropped.Load(),
	}
}
