package energyclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

//FetchFunc is polled by a Poller
type FetchFunc func(ctx context.Context) error

//Poller calls a FetchFunc immediately and then once every interval. A tick that
//arrives while the previous fetch is still running is skipped.
type Poller struct {
	interval time.Duration
	fetch    FetchFunc
	onError  func(error)

	busy    int32
	skipped int64
	wg      sync.WaitGroup
}

//NewPoller creates a poller. onError may be nil.
func NewPoller(interval time.Duration, fetch FetchFunc, onError func(error)) *Poller {
	if onError == nil {
		onError = func(error) {}
	}

	return &Poller{
		interval: interval,
		fetch:    fetch,
		onError:  onError,
	}
}

//Run polls until ctx is cancelled and then waits for a running fetch to return
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

//Skipped returns how many ticks were dropped because a fetch was still running
func (p *Poller) Skipped() int64 {
	return atomic.LoadInt64(&p.skipped)
}

func (p *Poller) poll(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.busy, 0, 1) {
		atomic.AddInt64(&p.skipped, 1)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer atomic.StoreInt32(&p.busy, 0)

		if err := p.fetch(ctx); err != nil && ctx.Err() == nil {
			p.onError(err)
		}
	}()
}
