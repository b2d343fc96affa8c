// Package tailconsumer wraps a queue.Reader with a start/stop lifecycle and
// a per-message callback, the shape a worker or a push-based consumer would
// share.
package tailconsumer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsjohal14/segqueue/internal/queue"
)

// Handler processes one message read from the tail. Returning an error
// stops the consumer.
type Handler func(timestampMs int64, payload []byte) error

// Connector is the lifecycle every tail consumer implements.
type Connector interface {
	Name() string
	Start() error
	Stop() error
}

// TailConsumer drives a queue.Reader in a background goroutine, invoking
// handle for each record it reads and stopping on the first error or on an
// explicit Stop.
type TailConsumer struct {
	name    string
	reader  *queue.Reader
	handle  Handler
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	lastErr error
}

// New creates a tail consumer over reader. timeout bounds each individual
// Read call, so Stop is never delayed longer than one timeout window by a
// reader blocked at the tail with nothing new to deliver.
func New(name string, reader *queue.Reader, timeout time.Duration, handle Handler, log zerolog.Logger) *TailConsumer {
	return &TailConsumer{name: name, reader: reader, handle: handle, timeout: timeout, log: log}
}

// Name returns the consumer's configured name.
func (c *TailConsumer) Name() string {
	return c.name
}

// Start begins the read loop in a background goroutine.
func (c *TailConsumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run()
	return nil
}

func (c *TailConsumer) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		ts, payload, err := c.reader.Read(c.timeout)
		if err != nil {
			switch k, _ := queue.KindOf(err); k {
			case queue.KindInfeasible:
				continue // Read timed out with nothing new; loop and try again.
			case queue.KindCanceled:
				return // Owning queue closed.
			default:
				c.log.Error().Err(err).Str("consumer", c.name).Msg("tail read failed")
				c.setErr(err)
				return
			}
		}

		if err := c.handle(ts, payload); err != nil {
			c.log.Error().Err(err).Str("consumer", c.name).Int64("timestamp_ms", ts).Msg("handler failed")
			c.setErr(err)
			return
		}
	}
}

func (c *TailConsumer) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Err returns the error that stopped the consumer, if any.
func (c *TailConsumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stop halts the read loop and waits for it to exit.
func (c *TailConsumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	<-done
	return c.reader.Close()
}
