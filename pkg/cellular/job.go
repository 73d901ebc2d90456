package cellular

// Job runs a function once in the background and keeps its result
type Job[T any] struct {
	done   chan struct{}
	result T
}

// StartJob runs fn in a new goroutine
func StartJob[T any](fn func() T) *Job[T] {
	j := &Job[T]{done: make(chan struct{})}
	go func() {
		defer close(j.done)
		j.result = fn()
	}()
	return j
}

// Done reports whether fn has returned. It never blocks.
func (j *Job[T]) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Result returns the result of fn, or false while it is still running
func (j *Job[T]) Result() (T, bool) {
	if !j.Done() {
		var zero T
		return zero, false
	}
	return j.result, true
}

// Wait blocks until fn has returned
func (j *Job[T]) Wait() T {
	<-j.done
	return j.result
}
