// Package executortest provides collaborator doubles for the executor
// package's tests: testify/mock-based doubles for executor.CachePlugin,
// executor.Downstream and executor.Subscription, and plain in-memory
// implementations of executor.Codec, executor.KeyGenerator and
// executor.Registry.
package executortest

import "github.com/stretchr/testify/mock"

// Subscription is a mock executor.Subscription that records whether it was
// cancelled, for use in assertions like "downstream.cancelled=true".
type Subscription struct {
	mock.Mock
	cancelled bool
}

func NewSubscription() *Subscription {
	s := &Subscription{}
	s.On("Cancel").Return()
	return s
}

func (s *Subscription) Cancel() {
	s.cancelled = true
	s.Called()
}

// Cancelled reports whether Cancel has been called.
func (s *Subscription) Cancelled() bool { return s.cancelled }
