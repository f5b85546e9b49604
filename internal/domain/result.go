package domain

// ResultKind enumerates the variants of Result.
type ResultKind int

const (
	ResultLoading ResultKind = iota
	ResultSuccess
	ResultFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultLoading:
		return "loading"
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the payload passed between repository, use cases and view-model.
// The zero value is Loading.
type Result[T any] struct {
	kind  ResultKind
	value T
	err   *AlbumError
}

// Loading returns the in-progress variant
func Loading[T any]() Result[T] {
	return Result[T]{kind: ResultLoading}
}

// Success wraps a value
func Success[T any](value T) Result[T] {
	return Result[T]{kind: ResultSuccess, value: value}
}

// Failure wraps an error. A nil err becomes a generic network error.
func Failure[T any](err *AlbumError) Result[T] {
	if err == nil {
		err = NetworkError("")
	}
	return Result[T]{kind: ResultFailure, err: err}
}

// Kind returns the variant
func (r Result[T]) Kind() ResultKind { return r.kind }

// IsLoading reports whether r is the Loading variant
func (r Result[T]) IsLoading() bool { return r.kind == ResultLoading }

// Value returns the success value and whether r is Success
func (r Result[T]) Value() (T, bool) {
	return r.value, r.kind == ResultSuccess
}

// Err returns the failure, or nil unless r is Failure
func (r Result[T]) Err() *AlbumError {
	if r.kind != ResultFailure {
		return nil
	}
	return r.err
}

// Match calls exactly one handler for the variant of r.
// All three handlers are required so callers cannot forget a case.
func (r Result[T]) Match(onLoading func(), onSuccess func(T), onFailure func(*AlbumError)) {
	switch r.kind {
	case ResultSuccess:
		onSuccess(r.value)
	case ResultFailure:
		onFailure(r.err)
	default:
		onLoading()
	}
}

// Fold maps each variant of r to a value of type R.
func Fold[T, R any](r Result[T], onLoading func() R, onSuccess func(T) R, onFailure func(*AlbumError) R) R {
	switch r.kind {
	case ResultSuccess:
		return onSuccess(r.value)
	case ResultFailure:
		return onFailure(r.err)
	default:
		return onLoading()
	}
}
