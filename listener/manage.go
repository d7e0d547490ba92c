package listener

import (
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/types"
	"go.uber.org/multierr"
	"net"
	"sort"
	"sync"
)

var (
	ErrNotFound        = errors.New("listener not found")
	ErrAlreadyAcquired = errors.New("listener already acquired")
)

// Registry owns the bound sockets of the listeners section. A socket is
// handed to one server at a time.
type Registry struct {
	mu       sync.Mutex
	listens  map[string]net.Listener
	acquired map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		listens:  make(map[string]net.Listener),
		acquired: make(map[string]string),
	}
}

// Bind opens a socket for every listener key, keys already bound are kept.
// On error the sockets opened by this call are closed again.
func (r *Registry) Bind(keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var opened []string
	for _, key := range keys {
		if _, ok := r.listens[key]; ok {
			continue
		}
		addr, err := types.ParseListenerAddress(key)
		if err != nil {
			return r.rollback(opened, err)
		}
		l, err := addr.Listen()
		if err != nil {
			return r.rollback(opened, errors.Wrapf(err, "unable to bind listener %s", key))
		}
		r.listens[key] = l
		opened = append(opened, key)
	}
	return nil
}

func (r *Registry) rollback(keys []string, err error) error {
	for _, key := range keys {
		err = multierr.Append(err, r.listens[key].Close())
		delete(r.listens, key)
	}
	return err
}

// Add registers an already open socket under a listener key.
func (r *Registry) Add(key string, l net.Listener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listens[key]; ok {
		return errors.Errorf("listener %s already registered", key)
	}
	r.listens[key] = l
	return nil
}

func (r *Registry) Acquire(key, owner string) (net.Listener, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.acquired[key]; ok {
		return nil, errors.Wrapf(ErrAlreadyAcquired, "%s is held by %s", key, a)
	}
	l, ok := r.listens[key]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", key)
	}
	r.acquired[key] = owner
	return l, nil
}

func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.acquired, key)
}

// Addr is nil for unknown keys.
func (r *Registry) Addr(key string) net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.listens[key]; ok {
		return l.Addr()
	}
	return nil
}

func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.listens))
	for k := range r.listens {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close closes every socket, fasthttp servers that already shut down may have
// closed theirs, those errors are ignored.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for key, l := range r.listens {
		if e := l.Close(); e != nil && !isClosedErr(e) {
			err = multierr.Append(err, errors.Wrapf(e, "closing listener %s", key))
		}
		delete(r.listens, key)
		delete(r.acquired, key)
	}
	return err
}

func isClosedErr(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err != nil && opErr.Err.Error() == "use of closed network connection"
	}
	return false
}
