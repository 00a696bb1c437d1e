package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

type PoolConfig struct {
	Binary   string
	Capacity int
	Options  Options
}

// Pool lends out at most Capacity engines, starting them lazily.
type Pool struct {
	binary string
	opt    Options
	slots  chan struct{}
	idle   chan *Engine

	mu     sync.Mutex
	live   int
	closed bool
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Binary == "" {
		return nil, errors.New("engine binary path required")
	}
	if _, err := os.Stat(cfg.Binary); err != nil {
		return nil, fmt.Errorf("engine binary: %w", err)
	}
	n := max(cfg.Capacity, 1)
	return &Pool{
		binary: cfg.Binary,
		opt:    cfg.Options.normalized(),
		slots:  make(chan struct{}, n),
		idle:   make(chan *Engine, n),
	}, nil
}

// Acquire returns a ready engine, starting one when a slot is free.
func (p *Pool) Acquire(ctx context.Context) (*Engine, error) {
	for {
		select {
		case e := <-p.idle:
			if err := e.Ready(ctx); err != nil {
				p.drop(e)
				continue
			}
			return e, nil
		case p.slots <- struct{}{}:
			if p.isClosed() {
				<-p.slots
				return nil, ErrEngineClosed
			}
			e, err := Start(ctx, p.binary, p.opt)
			if err != nil {
				<-p.slots
				return nil, err
			}
			p.mu.Lock()
			p.live++
			p.mu.Unlock()
			return e, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release hands an engine back. A non-nil err retires it.
func (p *Pool) Release(e *Engine, err error) {
	if e == nil {
		return
	}
	if err != nil || p.isClosed() {
		p.drop(e)
		return
	}
	select {
	case p.idle <- e:
	default:
		p.drop(e)
	}
}

func (p *Pool) drop(e *Engine) {
	_ = e.Close()
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
	<-p.slots
}

// Size is the number of running engine processes.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Close stops idle engines; engines still lent out stop on Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	var errs []error
	for {
		select {
		case e := <-p.idle:
			if err := e.Close(); err != nil {
				errs = append(errs, err)
			}
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
			<-p.slots
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
