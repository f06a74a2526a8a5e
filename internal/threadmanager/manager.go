package threadmanager

import (
	"errors"
	"sync"
)

// Manager hands out a fixed number of numbered slots. A slot number is
// only held by one goroutine at a time, so it can index per worker state.
type Manager struct {
	c    chan int
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

func NewManager(maxRoutines int) *Manager {
	if maxRoutines < 1 {
		maxRoutines = 1
	}
	m := &Manager{
		c: make(chan int, maxRoutines),
	}
	for i := 0; i < maxRoutines; i++ {
		m.c <- i
	}
	return m
}

// Slots is the number of slots.
func (m *Manager) Slots() int {
	return cap(m.c)
}

func (m *Manager) Lock() int {
	return <-m.c
}

func (m *Manager) Unlock(n int) {
	m.c <- n
}

// Go waits for a free slot and runs fn on it in a new goroutine.
func (m *Manager) Go(fn func(slot int) error) {
	slot := m.Lock()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.Unlock(slot)
		if err := fn(slot); err != nil {
			m.mu.Lock()
			m.errs = append(m.errs, err)
			m.mu.Unlock()
		}
	}()
}

// Wait blocks until every function started with Go has returned and joins
// their errors.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	err := errors.Join(m.errs...)
	m.errs = nil
	return err
}
