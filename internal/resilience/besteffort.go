package resilience

// Result is the outcome of a best-effort operation whose failure must not
// abort the caller. A degraded result still carries a usable value (the
// fallback default) alongside the error that caused the degradation.
type Result[T any] struct {
	value T
	err   error
}

// Ok returns a successful [Result].
func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// Degraded returns a [Result] holding the fallback value def and its cause.
// A nil cause is treated as success.
func Degraded[T any](def T, cause error) Result[T] { return Result[T]{value: def, err: cause} }

// Value returns the produced or fallback value.
func (r Result[T]) Value() T { return r.value }

// Degraded reports whether the fallback value was used.
func (r Result[T]) Degraded() bool { return r.err != nil }

// Err returns the cause of degradation, or nil.
func (r Result[T]) Err() error { return r.err }

// Unwrap returns the value and the cause, for callers that prefer the
// conventional two-value form.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }
