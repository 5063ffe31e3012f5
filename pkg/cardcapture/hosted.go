package cardcapture

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Element is the gateway-provided hosted card field.
type Element interface {
	Load(ctx context.Context, publicKey string) error
	Mount(ctx context.Context, containerID string) error
	Complete() bool
	Tokenize(ctx context.Context) (string, error)
}

// Frame is the surrounding page the element mounts into.
type Frame interface {
	ContainerPresent(id string) bool
	// Committed is closed once the frame has rendered.
	Committed() <-chan struct{}
}

type Readiness string

const (
	ReadinessLoading Readiness = "loading"
	ReadinessReady   Readiness = "ready"
	ReadinessError   Readiness = "error"
)

type HostedCapture struct {
	element   Element
	frame     Frame
	container string
	publicKey string

	mu    sync.Mutex
	state Readiness
	err   error
}

func NewHosted(element Element, frame Frame, container, publicKey string) *HostedCapture {
	return &HostedCapture{
		element:   element,
		frame:     frame,
		container: container,
		publicKey: publicKey,
		state:     ReadinessLoading,
	}
}

func (h *HostedCapture) State() (Readiness, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.err
}

func (h *HostedCapture) fail(err error) error {
	h.mu.Lock()
	h.state, h.err = ReadinessError, err
	h.mu.Unlock()
	return err
}

// Init loads the element script and mounts it once the frame has committed.
// A failed mount is retried once.
func (h *HostedCapture) Init(ctx context.Context) error {
	if h.publicKey == "" {
		return h.fail(ErrMissingPublicKey)
	}
	if err := h.element.Load(ctx, h.publicKey); err != nil {
		return h.fail(fmt.Errorf("%w: %v", ErrScriptLoad, err))
	}
	select {
	case <-h.frame.Committed():
	case <-ctx.Done():
		return h.fail(ctx.Err())
	}
	if !h.frame.ContainerPresent(h.container) {
		return h.fail(ErrContainerMissing)
	}
	err := h.element.Mount(ctx, h.container)
	if err != nil {
		err = h.element.Mount(ctx, h.container)
	}
	if err != nil {
		return h.fail(fmt.Errorf("%w: %v", ErrMountFailed, err))
	}
	h.mu.Lock()
	h.state, h.err = ReadinessReady, nil
	h.mu.Unlock()
	return nil
}

// Capture tokenizes the completed element into a reference PaymentMethod.
func (h *HostedCapture) Capture(ctx context.Context) (*PaymentMethod, error) {
	if state, _ := h.State(); state != ReadinessReady {
		return nil, ErrNotReady
	}
	if !h.element.Complete() {
		return nil, ErrIncomplete
	}
	ref, err := h.element.Tokenize(ctx)
	if err != nil {
		return nil, err
	}
	return NewReference(ref), nil
}

// StaticFrame is a frame that has already committed, for headless callers.
type StaticFrame struct {
	Containers []string
	once       sync.Once
	ch         chan struct{}
}

func (f *StaticFrame) ContainerPresent(id string) bool {
	for _, c := range f.Containers {
		if c == id {
			return true
		}
	}
	return false
}

func (f *StaticFrame) Committed() <-chan struct{} {
	f.once.Do(func() {
		f.ch = make(chan struct{})
		close(f.ch)
	})
	return f.ch
}

// PresetElement is a headless Element that tokenizes to a fixed payment
// method id, or a generated one when PaymentMethodID is empty. It lets the
// CLI drive sandbox and test-mode checkouts without a browser.
type PresetElement struct {
	PaymentMethodID string

	loaded  bool
	mounted bool
}

func (e *PresetElement) Load(_ context.Context, publicKey string) error {
	if !strings.HasPrefix(publicKey, "pk_") {
		return fmt.Errorf("unexpected publishable key format")
	}
	e.loaded = true
	return nil
}

func (e *PresetElement) Mount(context.Context, string) error {
	if !e.loaded {
		return ErrNotReady
	}
	e.mounted = true
	return nil
}

func (e *PresetElement) Complete() bool { return e.mounted }

func (e *PresetElement) Tokenize(context.Context) (string, error) {
	if e.PaymentMethodID != "" {
		return e.PaymentMethodID, nil
	}
	return "pm_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24], nil
}
