package blacklistclient

import (
	"context"
	"sync"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
)

// State is what a hook exposes to its owner.
type State[R any] struct {
	Loading bool
	Err     error
	Result  R
}

// FetchFunc performs one lookup for the given parameters.
type FetchFunc[P comparable, R any] func(ctx context.Context, params P) (R, error)

// Hook runs a fetch when mounted and again whenever its parameters change.
// Only the newest run may update the state, so a slow response for old
// parameters never overwrites a fresh one.
type Hook[P comparable, R any] struct {
	fetch    FetchFunc[P, R]
	onChange func(State[R])

	mu      sync.Mutex
	params  P
	state   State[R]
	mounted bool
	seq     uint64
}

// NewHook creates an unmounted hook. onChange may be nil.
func NewHook[P comparable, R any](fetch FetchFunc[P, R], params P, onChange func(State[R])) *Hook[P, R] {
	return &Hook[P, R]{fetch: fetch, params: params, onChange: onChange}
}

// Mount runs the first fetch. Calling it again is a no-op.
func (h *Hook[P, R]) Mount(ctx context.Context) {
	h.mu.Lock()
	if h.mounted {
		h.mu.Unlock()
		return
	}
	h.mounted = true
	h.mu.Unlock()
	h.run(ctx)
}

// SetParams replaces the parameters and refetches if they changed on a
// mounted hook.
func (h *Hook[P, R]) SetParams(ctx context.Context, params P) {
	h.mu.Lock()
	changed := params != h.params
	h.params = params
	mounted := h.mounted
	h.mu.Unlock()
	if changed && mounted {
		h.run(ctx)
	}
}

// Refetch runs the fetch again with the current parameters.
func (h *Hook[P, R]) Refetch(ctx context.Context) {
	h.run(ctx)
}

// State returns a snapshot of the current state.
func (h *Hook[P, R]) State() State[R] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Hook[P, R]) run(ctx context.Context) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	params := h.params
	h.state.Loading = true
	h.state.Err = nil
	snapshot := h.state
	h.mu.Unlock()
	h.notify(snapshot)

	result, err := h.fetch(ctx, params)

	h.mu.Lock()
	if seq != h.seq {
		h.mu.Unlock()
		return
	}
	h.state.Loading = false
	h.state.Err = err
	if err == nil {
		h.state.Result = result
	}
	snapshot = h.state
	h.mu.Unlock()
	h.notify(snapshot)
}

func (h *Hook[P, R]) notify(s State[R]) {
	if h.onChange != nil {
		h.onChange(s)
	}
}

// Checker is the part of Client a check hook needs.
type Checker interface {
	Check(ctx context.Context, p CheckParams) (models.CheckResult, error)
}

// ContentValidator is the part of Client a content hook needs.
type ContentValidator interface {
	ValidateContent(ctx context.Context, text string) (models.ContentValidation, error)
}

// NewCheckHook wraps a blacklist check.
func NewCheckHook(c Checker, params CheckParams, onChange func(State[models.CheckResult])) *Hook[CheckParams, models.CheckResult] {
	return NewHook[CheckParams, models.CheckResult](c.Check, params, onChange)
}

// NewContentHook wraps content validation of a piece of text.
func NewContentHook(v ContentValidator, text string, onChange func(State[models.ContentValidation])) *Hook[string, models.ContentValidation] {
	return NewHook[string, models.ContentValidation](v.ValidateContent, text, onChange)
}
