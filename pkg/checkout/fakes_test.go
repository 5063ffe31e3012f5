package checkout

import (
	"context"
	"sync"
	"time"

	"streamvault/pkg/payment"
)

// fakeClock advances instantly on every After call.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.May, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedStatus answers from a list, repeating the last entry.
type scriptedStatus struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	calls   int
}

func (s *scriptedStatus) FetchStatus(ctx context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if len(s.answers) == 0 {
		return payment.StatusPending, nil
	}
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	return s.answers[i], nil
}

func (s *scriptedStatus) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeSubmitter struct {
	resp  *SubmitResponse
	err   error
	calls []SubmitRequest
}

func (f *fakeSubmitter) Submit(_ context.Context, req SubmitRequest) (*SubmitResponse, error) {
	f.calls = append(f.calls, req)
	return f.resp, f.err
}

type fakeConfirmer struct {
	status string
	err    error
	secret string
}

func (f *fakeConfirmer) Confirm(_ context.Context, _ string, clientSecret string) (string, error) {
	f.secret = clientSecret
	return f.status, f.err
}

type recordingPresenter struct {
	presented []payment.ThreeDSChallenge
	closed    int
	dismissOn bool
}

func (p *recordingPresenter) Present(_ context.Context, _ string, ch payment.ThreeDSChallenge, dismiss func()) error {
	p.presented = append(p.presented, ch)
	if p.dismissOn {
		dismiss()
	}
	return nil
}

func (p *recordingPresenter) Close(string) { p.closed++ }
