package checkout

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"streamvault/pkg/payment"
)

type State string

const (
	StateIdle           State = "idle"
	StateSubmitting     State = "submitting"
	StateRequiresAction State = "requires_action"
	StatePolling        State = "polling"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
)

// transitions lists every legal move. Terminal states have no entry.
var transitions = map[State][]State{
	StateIdle:           {StateSubmitting},
	StateSubmitting:     {StateRequiresAction, StatePolling, StateSucceeded, StateFailed},
	StateRequiresAction: {StatePolling, StateFailed},
	StatePolling:        {StateSucceeded, StateFailed},
}

func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Attempt is one checkout try, owned by the orchestrator.
type Attempt struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Customer  payment.Customer
	Provider  payment.ProviderName

	mu      sync.Mutex
	state   State
	history []State
}

func newAttempt(reference string) *Attempt {
	return &Attempt{Reference: reference, state: StateIdle, history: []State{StateIdle}}
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// History returns every state the attempt has been in, in order.
func (a *Attempt) History() []State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]State(nil), a.history...)
}

func (a *Attempt) transition(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !canTransition(a.state, to) {
		return fmt.Errorf("checkout %s: illegal transition %s -> %s", a.Reference, a.state, to)
	}
	a.state = to
	a.history = append(a.history, to)
	return nil
}

// NewReference builds the checkout reference used as idempotency key.
func NewReference(now time.Time) string {
	return fmt.Sprintf("ORDER-%d", now.UnixMilli())
}
