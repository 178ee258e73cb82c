package taskutil

import (
	"errors"
	"time"

	"github.com/primetalk/goio/io"
)

var errNilResult = errors.New("result is nil")

// SafeTask runs a function synchronously, bounded by an optional timeout.
// Panics raised by the function are returned as errors.
type SafeTask[T any] struct {
	fn      func() (*T, error)
	timeout *time.Duration
	recover func(error) T
}

func NewTask[T any](fn func() (*T, error)) *SafeTask[T] {
	return &SafeTask[T]{fn: fn}
}

func NewTaskErr(fn func() error) *SafeTask[struct{}] {
	return &SafeTask[struct{}]{
		fn: func() (*struct{}, error) {
			if err := fn(); err != nil {
				return nil, err
			}
			return &struct{}{}, nil
		},
	}
}

func (t *SafeTask[T]) WithTimeout(timeout time.Duration) *SafeTask[T] {
	if timeout > 0 {
		t.timeout = &timeout
	}
	return t
}

func (t *SafeTask[T]) Recover(fn func(error) T) *SafeTask[T] {
	t.recover = fn
	return t
}

func (t *SafeTask[T]) Run() (T, error) {
	task := io.Eval(func() (T, error) {
		a, err := t.fn()
		if err != nil {
			var zero T
			return zero, err
		}
		if a == nil {
			var zero T
			return zero, errNilResult
		}
		return *a, nil
	})
	if t.timeout != nil {
		task = io.WithTimeout[T](*t.timeout)(task)
	}
	result := io.RunSync(task)
	if result.Error != nil {
		if t.recover != nil {
			return t.recover(result.Error), nil
		}
		var zero T
		return zero, result.Error
	}
	return result.Value, nil
}

// RunWithTimeout runs fn and gives up waiting after timeout.
func RunWithTimeout(timeout time.Duration, fn func() error) error {
	_, err := NewTaskErr(fn).WithTimeout(timeout).Run()
	return err
}
