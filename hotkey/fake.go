package hotkey

import "sync/atomic"

type FakeHotkey struct {
	keydown    chan struct{}
	keyup      chan struct{}
	registered atomic.Bool
	regErr     error
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

// FailRegister makes Register return err.
func (f *FakeHotkey) FailRegister(err error) *FakeHotkey {
	f.regErr = err
	return f
}

func (f *FakeHotkey) Register() error {
	if f.regErr != nil {
		return f.regErr
	}
	f.registered.Store(true)
	return nil
}

func (f *FakeHotkey) Unregister()              { f.registered.Store(false) }
func (f *FakeHotkey) Registered() bool         { return f.registered.Load() }
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.keyup <- struct{}{} }
