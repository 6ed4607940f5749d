package execution

// Hooks receives lifecycle callbacks from a host. Every handler is optional;
// a nil handler is skipped, not an error. Handlers are invoked from the
// host's run goroutine in strict order: OnStart first, then zero or more
// OnEmit (streaming hosts only), then exactly one terminal callback:
// OnDone for succeeded and canceled outcomes, OnError for failed ones.
type Hooks[T any] struct {
	OnStart func(id string)
	OnEmit  func(id string, payload any)
	OnDone  func(id string, result Result[T])
	OnError func(id string, err error)
}

func (h *Hooks[T]) start(id string) {
	if h != nil && h.OnStart != nil {
		h.OnStart(id)
	}
}

func (h *Hooks[T]) emit(id string, payload any) {
	if h != nil && h.OnEmit != nil {
		h.OnEmit(id, payload)
	}
}

func (h *Hooks[T]) terminal(id string, result Result[T]) {
	if h == nil {
		return
	}
	if result.Status == StatusFailed {
		if h.OnError != nil {
			h.OnError(id, result.Err)
		}
		return
	}
	if h.OnDone != nil {
		h.OnDone(id, result)
	}
}
