package blocking

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

var ErrNotMounted = errors.New("control not mounted")

type mount struct {
	owner    string
	control  *Control
	lastSeen time.Time
}

// Registry holds the controls mounted by page views. Each mount belongs to
// one owner (a browser session) and is invisible to others.
type Registry struct {
	api           API
	defaultReason string
	now           func() time.Time

	mu     sync.Mutex
	mounts map[string]*mount
}

func NewRegistry(api API, defaultReason string) *Registry {
	return &Registry{
		api:           api,
		defaultReason: defaultReason,
		now:           time.Now,
		mounts:        make(map[string]*mount),
	}
}

// Mount creates a control for target and returns its mount ID.
func (r *Registry) Mount(owner string, target models.BlockTarget, opts Options) (string, *Control, error) {
	if owner == "" {
		return "", nil, errors.New("blocking: mount requires an owner")
	}
	opts.DefaultReason = r.defaultReason
	if opts.Now == nil {
		opts.Now = r.now
	}
	c, err := New(r.api, target, opts)
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.mounts[id] = &mount{owner: owner, control: c, lastSeen: r.now()}
	r.mu.Unlock()
	return id, c, nil
}

// Get returns the owner's control and marks it as recently used.
func (r *Registry) Get(owner, id string) (*Control, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mounts[id]
	if !ok || m.owner != owner {
		return nil, ErrNotMounted
	}
	m.lastSeen = r.now()
	return m.control, nil
}

// Unmount drops the control. Its local state is discarded.
func (r *Registry) Unmount(owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mounts[id]
	if !ok || m.owner != owner {
		return ErrNotMounted
	}
	delete(r.mounts, id)
	return nil
}

// Sweep unmounts controls idle for longer than maxIdle, skipping any with a
// request in flight. It returns how many were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, m := range r.mounts {
		if m.lastSeen.After(cutoff) {
			continue
		}
		if m.control.Session().Pending {
			continue
		}
		delete(r.mounts, id)
		removed++
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mounts)
}
