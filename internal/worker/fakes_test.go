package worker

import (
	"context"
	"sync"

	"github.com/sungwon/ticket-printer/internal/artifact"
	"github.com/sungwon/ticket-printer/internal/queue"
)

// receiveResult is one scripted Receive response.
type receiveResult struct {
	msgs []queue.Message
	err  error
}

// fakeQueue replays scripted receives. Once the script is exhausted Receive
// signals idle and long-polls until ctx is canceled.
type fakeQueue struct {
	mu        sync.Mutex
	script    []receiveResult
	receives  int
	deleted   []string
	deleteErr map[string]error
	idle      chan struct{}
}

func newFakeQueue(script ...receiveResult) *fakeQueue {
	return &fakeQueue{
		script:    script,
		deleteErr: map[string]error{},
		idle:      make(chan struct{}, 1),
	}
}

func (q *fakeQueue) Receive(ctx context.Context, _, _ int) ([]queue.Message, error) {
	q.mu.Lock()
	q.receives++
	if len(q.script) > 0 {
		r := q.script[0]
		q.script = q.script[1:]
		q.mu.Unlock()
		return r.msgs, r.err
	}
	q.mu.Unlock()

	select {
	case q.idle <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, &queue.TransportError{Op: "receive", Code: queue.CodeCanceled, Message: ctx.Err().Error(), Err: ctx.Err()}
}

func (q *fakeQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.deleteErr[receiptHandle]; err != nil {
		return err
	}
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) Deleted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

func (q *fakeQueue) Receives() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.receives
}

// fakeFetcher serves artifacts from a map; unknown keys are not found.
type fakeFetcher struct {
	mu      sync.Mutex
	objects map[string][]byte
	errs    map[string]error
	fetched []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{objects: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, &artifact.FetchError{Key: key, StatusCode: 404, Permanent: true, Err: artifact.ErrNotFound}
	}
	return data, nil
}

func (f *fakeFetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// fakePrinter records printed images.
type fakePrinter struct {
	mu      sync.Mutex
	printed [][]byte
	err     error
	onPrint func()
}

func (p *fakePrinter) Print(_ context.Context, image []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onPrint != nil {
		p.onPrint()
	}
	if p.err != nil {
		return p.err
	}
	p.printed = append(p.printed, image)
	return nil
}

func (p *fakePrinter) Close() error { return nil }

func (p *fakePrinter) Printed() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.printed...)
}
