package pool

import (
	"bytes"
	"sync"

	"github.com/kychandar/hammer/ds"
)

// GenericPool is a generic sync.Pool wrapper
type GenericPool[T any] struct {
	pool *sync.Pool
	new  func() T
}

// NewGenericPool creates a new generic pool with a factory function
func NewGenericPool[T any](factory func() T) *GenericPool[T] {
	return &GenericPool[T]{
		pool: &sync.Pool{
			New: func() interface{} {
				return factory()
			},
		},
		new: factory,
	}
}

// Get retrieves an object from the pool or creates a new one
func (p *GenericPool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put returns an object to the pool
func (p *GenericPool[T]) Put(obj T) {
	p.pool.Put(obj)
}

// buffers above this size are dropped instead of pooled so one huge payload
// does not pin memory forever
const maxPooledBuffer = 1 << 20

// ObjectPool holds the pools for scratch objects on hot paths: rendering
// payload views and encoding websocket frames.
type ObjectPool struct {
	Buffer        *GenericPool[*bytes.Buffer]
	ServerMessage *GenericPool[*ds.ServerMessage]
}

// NewObjectPool creates and initializes all object pools
func NewObjectPool() *ObjectPool {
	return &ObjectPool{
		Buffer: NewGenericPool(func() *bytes.Buffer {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		}),
		ServerMessage: NewGenericPool(func() *ds.ServerMessage {
			return &ds.ServerMessage{}
		}),
	}
}

var globalPool = NewObjectPool()

// GetGlobalPool returns the global object pool
func GetGlobalPool() *ObjectPool {
	return globalPool
}

func (p *ObjectPool) ResetBuffer(b *bytes.Buffer) {
	if b.Cap() > maxPooledBuffer {
		return
	}
	b.Reset()
	p.Buffer.Put(b)
}

func (p *ObjectPool) ResetServerMessage(msg *ds.ServerMessage) {
	*msg = ds.ServerMessage{}
	p.ServerMessage.Put(msg)
}
