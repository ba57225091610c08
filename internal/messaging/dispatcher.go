package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Dispatcher is an in-process Channel. Each call gets a correlation id and
// runs on its own goroutine; its reply is routed back by that id only.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]chan Response
	wg      sync.WaitGroup
}

var _ Channel = (*Dispatcher)(nil)

// NewDispatcher routes calls to handler.
func NewDispatcher(handler Handler, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		logger:  log,
		pending: map[string]chan Response{},
	}
}

// Call blocks until the handler answered or ctx is done.
func (d *Dispatcher) Call(ctx context.Context, req Request) (Response, error) {
	id := uuid.NewString()
	req.ID = id
	reply := make(chan Response, 1)

	d.mu.Lock()
	d.pending[id] = reply
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		resp := d.handler.Handle(ctx, req)
		resp.ID = id
		d.resolve(resp)
	}()

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		d.forget(id)
		return Response{}, fmt.Errorf("message %s: %w", id, ctx.Err())
	}
}

// InFlight counts calls that have not been answered yet.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Wait blocks until every handler goroutine returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) resolve(resp Response) {
	d.mu.Lock()
	reply, ok := d.pending[resp.ID]
	delete(d.pending, resp.ID)
	d.mu.Unlock()

	if !ok {
		d.debug("dropping response for abandoned message", "id", resp.ID)
		return
	}
	reply <- resp
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *Dispatcher) debug(msg string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
