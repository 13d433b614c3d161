package pool

import "time"

// NewFixedPool creates a pool holding a constant number of executors. The
// size never changes after warmup.
func NewFixedPool(factory ManagerFactory, size int) (*Pool, error) {
	return New(factory, Config{MinSize: size, MaxSize: size})
}

// NewCachedPool creates a pool that grows on demand without an upper bound
// and retires executors idle for longer than keepAlive.
func NewCachedPool(factory ManagerFactory, keepAlive time.Duration) (*Pool, error) {
	return New(factory, Config{MaxSize: Unlimited, KeepAlive: keepAlive})
}

// NewSinglePool creates a fixed pool holding a single executor.
func NewSinglePool(factory ManagerFactory) (*Pool, error) {
	return NewFixedPool(factory, 1)
}
