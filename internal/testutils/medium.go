package testutils

import (
	"context"
	"sync"

	"github.com/phrazzld/caderno-api/internal/platform/memory"
	"github.com/phrazzld/caderno-api/internal/store"
)

// FakeMedium is an in-memory store.Medium whose operations can be made to
// fail per key.
type FakeMedium struct {
	*memory.Medium

	mu          sync.Mutex
	setErrs     map[string]error
	failAll     error
	setCalls    []string
	removeCalls []string
}

var _ store.Medium = (*FakeMedium)(nil)

// NewFakeMedium creates an unlimited FakeMedium.
func NewFakeMedium() *FakeMedium {
	return &FakeMedium{
		Medium:  memory.New(0),
		setErrs: make(map[string]error),
	}
}

// FailSet makes every SetItem for key return err. A nil err clears it.
func (f *FakeMedium) FailSet(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.setErrs, key)
		return
	}
	f.setErrs[key] = err
}

// FailAll makes every operation return err. A nil err clears it.
func (f *FakeMedium) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

func (f *FakeMedium) globalErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failAll
}

// SetCalls returns the keys passed to SetItem, in call order.
func (f *FakeMedium) SetCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.setCalls...)
}

// RemoveCalls returns the keys passed to RemoveItem, in call order.
func (f *FakeMedium) RemoveCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removeCalls...)
}

// Raw reads key straight from the underlying map.
func (f *FakeMedium) Raw(key string) (string, bool) {
	v, ok, _ := f.Medium.GetItem(context.Background(), key)
	return v, ok
}

// GetItem implements store.Medium.
func (f *FakeMedium) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := f.globalErr(); err != nil {
		return "", false, err
	}
	return f.Medium.GetItem(ctx, key)
}

// SetItem implements store.Medium.
func (f *FakeMedium) SetItem(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.setCalls = append(f.setCalls, key)
	err := f.failAll
	if err == nil {
		err = f.setErrs[key]
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Medium.SetItem(ctx, key, value)
}

// RemoveItem implements store.Medium.
func (f *FakeMedium) RemoveItem(ctx context.Context, key string) error {
	f.mu.Lock()
	f.removeCalls = append(f.removeCalls, key)
	f.mu.Unlock()
	if err := f.globalErr(); err != nil {
		return err
	}
	return f.Medium.RemoveItem(ctx, key)
}

// Clear implements store.Medium.
func (f *FakeMedium) Clear(ctx context.Context) error {
	if err := f.globalErr(); err != nil {
		return err
	}
	return f.Medium.Clear(ctx)
}

// Keys implements store.Medium.
func (f *FakeMedium) Keys(ctx context.Context) ([]string, error) {
	if err := f.globalErr(); err != nil {
		return nil, err
	}
	return f.Medium.Keys(ctx)
}
