package action

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/calehh/dao-app/state"
)

var (
	ErrActionRegistered = errors.New("action already registered")
	ErrEmptyTarget      = errors.New("empty action target")
)

// Router maps action targets to their implementation. It is filled once at
// startup and read concurrently afterwards.
type Router struct {
	mtx     sync.RWMutex
	actions map[string]state.ExternalAction
}

var _ state.ActionResolver = (*Router)(nil)

func NewRouter() *Router {
	return &Router{
		actions: make(map[string]state.ExternalAction),
	}
}

// NewDefaultRouter returns a router with the built-in actions.
func NewDefaultRouter() *Router {
	r := NewRouter()
	_ = r.Register(MintTarget, NewMintAction())
	return r
}

func (r *Router) Register(target string, action state.ExternalAction) error {
	if target == "" {
		return ErrEmptyTarget
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.actions[target]; ok {
		return fmt.Errorf("%w: %s", ErrActionRegistered, target)
	}
	r.actions[target] = action
	return nil
}

func (r *Router) Resolve(target string) (action state.ExternalAction, ok bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	action, ok = r.actions[target]
	return
}

func (r *Router) Targets() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	targets := make([]string, 0, len(r.actions))
	for t := range r.actions {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}
