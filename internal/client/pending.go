package client

import (
	"sync"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

type result struct {
	reply *proto.Reply
	err   error
}

// pending maps request ids to the channel their caller waits on.
// Channels have room for one result so resolving never blocks.
type pending struct {
	mu     sync.Mutex
	calls  map[string]chan result
	failed error
}

func newPending() *pending {
	return &pending{calls: make(map[string]chan result)}
}

// add registers id. After failAll the returned channel already holds the failure.
func (p *pending) add(id string) <-chan result {
	ch := make(chan result, 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failed != nil {
		ch <- result{err: p.failed}
		return ch
	}
	p.calls[id] = ch
	return ch
}

// resolve completes the call waiting for reply.RequestID. It reports false for unknown ids.
func (p *pending) resolve(reply *proto.Reply) bool {
	p.mu.Lock()
	ch, ok := p.calls[reply.RequestID]
	delete(p.calls, reply.RequestID)
	p.mu.Unlock()

	if ok {
		ch <- result{reply: reply}
	}
	return ok
}

func (p *pending) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.calls, id)
}

// failAll completes every waiting call with err and rejects later ones.
func (p *pending) failAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed = err
	for id, ch := range p.calls {
		ch <- result{err: err}
		delete(p.calls, id)
	}
}

func (p *pending) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
