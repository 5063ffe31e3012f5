package checkout

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"streamvault/pkg/payment"
)

// WriterPresenter prints the challenge for a human to open elsewhere. The
// customer dismisses it by closing the Cancel channel.
type WriterPresenter struct {
	Out    io.Writer
	Cancel <-chan struct{}

	mu   sync.Mutex
	done map[string]chan struct{}
}

func (p *WriterPresenter) Present(ctx context.Context, reference string, ch payment.ThreeDSChallenge, dismiss func()) error {
	fmt.Fprintf(p.Out, "3-D Secure verification required for %s\n  %s %s\n", reference, ch.Method, ch.URL)
	keys := make([]string, 0, len(ch.Payload))
	for k := range ch.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.Out, "  %s=%s\n", k, ch.Payload[k])
	}

	done := make(chan struct{})
	p.mu.Lock()
	if p.done == nil {
		p.done = make(map[string]chan struct{})
	}
	p.done[reference] = done
	p.mu.Unlock()

	if p.Cancel != nil {
		go func() {
			select {
			case <-p.Cancel:
				dismiss()
			case <-done:
			case <-ctx.Done():
			}
		}()
	}
	return nil
}

func (p *WriterPresenter) Close(reference string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if done, ok := p.done[reference]; ok {
		close(done)
		delete(p.done, reference)
	}
}
