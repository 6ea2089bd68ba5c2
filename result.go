package brokerauth

// Result is the tagged Success/Failure union that rides the mediation
// pipeline. A Result is immutable after construction: every combinator
// returns a fresh value and a Failure short-circuits all subsequent Map and
// FlatMap applications.
//
// Methods cannot introduce new type parameters in Go, so same-type
// transformation lives on the receiver (Map, FlatMap, Recover, Match) and
// cross-type transformation is provided by the free functions [MapTo] and
// [FlatMapTo].
type Result[T any] struct {
	value T
	sctx  *SecurityContext
	err   *Error
	ok    bool
}

// Success builds a successful Result carrying value and the security context
// it was produced under.
func Success[T any](value T, sctx *SecurityContext) Result[T] {
	return Result[T]{value: value, sctx: sctx, ok: true}
}

// Failure builds a failed Result. A nil err is normalized to
// [CodeSystemError] so a Failure can never masquerade as a Success.
func Failure[T any](err *Error) Result[T] {
	if err == nil {
		err = NewError(CodeSystemError)
	}
	return Result[T]{err: err}
}

// FailureCode builds a failed Result from a bare taxonomy code.
func FailureCode[T any](code Code) Result[T] {
	return Failure[T](NewError(code))
}

// IsSuccess reports whether the Result holds a value.
func (r Result[T]) IsSuccess() bool { return r.ok }

// IsFailure reports whether the Result holds an error.
func (r Result[T]) IsFailure() bool { return !r.ok }

// Value returns the carried value and whether it is present.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// MustValue returns the carried value, panicking on a Failure. Reserved for
// tests and for call sites that have already checked IsSuccess.
func (r Result[T]) MustValue() T {
	if !r.ok {
		panic("brokerauth: MustValue on failed result: " + r.err.Error())
	}
	return r.value
}

// Err returns the carried error, nil on Success.
func (r Result[T]) Err() *Error {
	if r.ok {
		return nil
	}
	return r.err
}

// Context returns the security context captured at Success time, nil on
// Failure.
func (r Result[T]) Context() *SecurityContext { return r.sctx }

// Map applies fn to the carried value. On Failure the Result passes through
// untouched.
func (r Result[T]) Map(fn func(T) T) Result[T] {
	if !r.ok {
		return r
	}
	return Success(fn(r.value), r.sctx)
}

// FlatMap applies a fallible fn to the carried value, railway style: the
// first Failure in a chain wins and every later stage is skipped.
func (r Result[T]) FlatMap(fn func(T) Result[T]) Result[T] {
	if !r.ok {
		return r
	}
	return fn(r.value)
}

// Recover replaces a Failure with the value produced by fn. A Success passes
// through untouched.
func (r Result[T]) Recover(fn func(*Error) T) Result[T] {
	if r.ok {
		return r
	}
	return Success(fn(r.err), r.sctx)
}

// Match invokes exactly one of onSuccess or onFailure.
func (r Result[T]) Match(onSuccess func(T), onFailure func(*Error)) {
	if r.ok {
		if onSuccess != nil {
			onSuccess(r.value)
		}
		return
	}
	if onFailure != nil {
		onFailure(r.err)
	}
}

// MapTo transforms a Result[T] into a Result[U] with an infallible fn.
func MapTo[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.IsFailure() {
		return Failure[U](r.Err())
	}
	return Success(fn(r.value), r.sctx)
}

// FlatMapTo transforms a Result[T] into a Result[U] with a fallible fn,
// short-circuiting on an upstream Failure.
func FlatMapTo[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.IsFailure() {
		return Failure[U](r.Err())
	}
	return fn(r.value)
}
