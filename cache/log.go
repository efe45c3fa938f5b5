package cache

// log.go wires the injected *zap.Logger to the cache's rare/slow-path
// events. Ground: teacher's pkg/config.go WithLogger comment ("the cache
// never logs on the hot path; only slow events ... are emitted") and
// SPEC_FULL.md §5's ambient-stack logging section. get/entry/iter never
// call into this file; the only logged event is a loader panic recovered at
// the boundary.

import "go.uber.org/zap"

// recoverLoaderPanic turns a panic inside a user-supplied LoaderFunc into an
// error instead of letting it unwind across the cache's own call stack
// (which would otherwise leave the shard's write lock Upsert is about to
// take in an inconsistent state). Logged at Error level since a panicking
// loader is always a caller bug, never expected control flow.
func recoverLoaderPanic(logger *zap.Logger, errOut *error) {
	if r := recover(); r != nil {
		logger.Error("layercache: loader panic recovered", zap.Any("panic", r))
		if err, ok := r.(error); ok {
			*errOut = err
		} else {
			*errOut = &loaderPanicError{value: r}
		}
	}
}

type loaderPanicError struct{ value any }

func (e *loaderPanicError) Error() string {
	return "layercache: loader panicked"
}
