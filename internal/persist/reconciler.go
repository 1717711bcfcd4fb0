// Package persist mirrors local scene edits to the remote layout store with
// debounced writes and per-panel request tokens.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"liner-layout/internal/panel"
	"liner-layout/internal/remote"
)

// DefaultDebounce is the input quiet period before a position is sent.
const DefaultDebounce = 500 * time.Millisecond

// Remote is the layout store the reconciler writes to.
type Remote interface {
	IsAuthenticated() bool
	CreatePanel(ctx context.Context, project string, p panel.Panel) (panel.Panel, error)
	MovePanel(ctx context.Context, project, id string, pos panel.Position) (panel.Panel, error)
	DeletePanel(ctx context.Context, project, id string) error
}

// Scene is the part of the scene store that results are merged into.
type Scene interface {
	Project() string
	Panel(id string) (panel.Panel, bool)
	ReplaceID(oldID, newID string) bool
	ApplyRemote(remote panel.Panel, sent panel.Position) bool
	Delete(id string) bool
	Notify(msg string)
}

// Timer is a pending debounce.
type Timer interface {
	Stop() bool
}

// Clock schedules debounce callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Dispatcher runs f on the thread that owns the scene.
type Dispatcher func(f func())

// Options configures a Reconciler.
type Options struct {
	Debounce time.Duration
	// Timeout bounds each remote call.
	Timeout  time.Duration
	Clock    Clock
	Dispatch Dispatcher
}

type entry struct {
	timer   Timer
	pending *panel.Position
	// token of the latest request issued for the panel
	token    uint64
	creating bool
	deleted  bool
}

// Reconciler implements scene.Syncer.
type Reconciler struct {
	remote   Remote
	scene    Scene
	debounce time.Duration
	timeout  time.Duration
	clock    Clock
	dispatch Dispatcher

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
	wg      sync.WaitGroup
}

// New creates a reconciler writing scene edits to r.
func New(r Remote, s Scene, opts Options) *Reconciler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = remote.DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) { f() }
	}
	return &Reconciler{
		remote:   r,
		scene:    s,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		dispatch: opts.Dispatch,
		entries:  make(map[string]*entry),
	}
}

func (r *Reconciler) entryLocked(id string) *entry {
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	return e
}

// PositionChanged restarts the panel's debounce with the new position.
// Pending-local panels hold the position until their create is confirmed.
func (r *Reconciler) PositionChanged(id string, pos panel.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	e := r.entryLocked(id)
	if e.deleted {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = &pos
	if panel.IsPendingLocal(id) {
		return
	}
	e.timer = r.clock.AfterFunc(r.debounce, func() { r.fire(id) })
}

// fire sends the debounced position for id.
func (r *Reconciler) fire(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if r.closed || !ok || e.pending == nil || e.deleted {
		r.mu.Unlock()
		return
	}
	e.timer = nil
	if !r.remote.IsAuthenticated() {
		r.mu.Unlock()
		log.Printf("persist: not signed in, %s kept local until Retry", id)
		return
	}
	pos := *e.pending
	e.pending = nil
	e.token++
	token := e.token
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		echo, err := r.remote.MovePanel(ctx, r.scene.Project(), id, pos)
		r.deliver(func() { r.resolveMove(id, token, pos, echo, err) })
	}()
}

// deliver hands a result to the scene thread unless the reconciler is closed.
func (r *Reconciler) deliver(f func()) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	r.dispatch(f)
}

// stale reports whether a response carrying token must be discarded: a newer
// request was issued, a newer edit is waiting out its debounce, or the panel
// was deleted locally.
func (r *Reconciler) stale(id string, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return !ok || e.token != token || e.pending != nil || e.deleted
}

func (r *Reconciler) resolveMove(id string, token uint64, sent panel.Position, echo panel.Panel, err error) {
	if r.stale(id, token) {
		return
	}
	if err != nil {
		r.fail(id, "save", err)
		return
	}
	if echo.ID == "" {
		return
	}
	echo.ID = id
	r.scene.ApplyRemote(echo, sent)
}

// fail classifies a write failure. Only not-found changes local state.
func (r *Reconciler) fail(id, op string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, remote.ErrNotFound):
		log.Printf("persist: %s %s: %v", op, id, err)
		r.forget(id)
		if r.scene.Delete(id) {
			r.scene.Notify(fmt.Sprintf("Panel %s no longer exists on the server and was removed", id))
		}
	case errors.Is(err, remote.ErrAuthExpired):
		log.Printf("persist: %s %s: %v", op, id, err)
		r.scene.Notify("Session expired: changes are kept locally until you sign in again")
	case remote.IsRetryable(err):
		log.Printf("persist: %s %s: %v", op, id, err)
		r.scene.Notify(fmt.Sprintf("Could not %s panel %s, server unavailable; kept locally", op, id))
	default:
		log.Printf("persist: %s %s: %v", op, id, err)
		r.scene.Notify(fmt.Sprintf("Could not %s panel %s: %v", op, id, err))
	}
}

func (r *Reconciler) forget(id string) {
	r.mu.Lock()
	if e, ok := r.entries[id]; ok && e.timer != nil {
		e.timer.Stop()
	}
	delete(r.entries, id)
	r.mu.Unlock()
}

// PanelAdded creates a pending-local panel remotely. Panels that already
// carry a server id need no write.
func (r *Reconciler) PanelAdded(p panel.Panel) {
	if !panel.IsPendingLocal(p.ID) {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	e := r.entryLocked(p.ID)
	if e.creating || e.deleted {
		r.mu.Unlock()
		return
	}
	if !r.remote.IsAuthenticated() {
		r.mu.Unlock()
		log.Printf("persist: not signed in, %s stays local", p.ID)
		return
	}
	e.creating = true
	e.token++
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		created, err := r.remote.CreatePanel(ctx, r.scene.Project(), p)
		r.deliver(func() { r.resolveCreate(p.ID, created, err) })
	}()
}

// Retry re-sends creates for pending-local panels and moves held while
// signed out, typically after signing in.
func (r *Reconciler) Retry(panels []panel.Panel) {
	for _, p := range panels {
		r.PanelAdded(p)
	}

	r.mu.Lock()
	var held []string
	for id, e := range r.entries {
		if e.pending != nil && e.timer == nil && !e.deleted && !panel.IsPendingLocal(id) {
			held = append(held, id)
		}
	}
	r.mu.Unlock()
	for _, id := range held {
		r.fire(id)
	}
}

func (r *Reconciler) resolveCreate(localID string, created panel.Panel, err error) {
	r.mu.Lock()
	e, ok := r.entries[localID]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.creating = false
	deleted := e.deleted
	if deleted || err != nil {
		if deleted {
			delete(r.entries, localID)
		}
		r.mu.Unlock()
		if err != nil {
			if !deleted && !errors.Is(err, context.Canceled) {
				log.Printf("persist: create %s: %v", localID, err)
				r.scene.Notify(fmt.Sprintf("Could not save new panel: %v; it is kept locally", err))
			}
			return
		}
		// Deleted while the create was in flight.
		r.deleteRemote(created.ID)
		return
	}
	r.mu.Unlock()

	if !r.scene.ReplaceID(localID, created.ID) {
		log.Printf("persist: confirm %s as %s: panel gone", localID, created.ID)
		r.forget(localID)
		return
	}

	r.mu.Lock()
	delete(r.entries, localID)
	pending := e.pending
	ne := r.entryLocked(created.ID)
	ne.pending = pending
	r.mu.Unlock()

	if current, ok := r.scene.Panel(created.ID); ok {
		r.scene.ApplyRemote(created, current.Position())
	}
	if pending != nil {
		r.fire(created.ID)
	}
}

// PanelRemoved deletes the panel remotely. Pending-local panels were never
// stored remotely unless their create is still in flight.
func (r *Reconciler) PanelRemoved(id string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	e := r.entryLocked(id)
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = nil
	e.deleted = true
	if panel.IsPendingLocal(id) {
		if !e.creating {
			delete(r.entries, id)
		}
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.deleteRemote(id)
}

func (r *Reconciler) deleteRemote(id string) {
	r.mu.Lock()
	if r.closed || !r.remote.IsAuthenticated() {
		r.mu.Unlock()
		log.Printf("persist: not signed in, delete of %s not sent", id)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		err := r.remote.DeletePanel(ctx, r.scene.Project(), id)
		r.deliver(func() { r.resolveDelete(id, err) })
	}()
}

func (r *Reconciler) resolveDelete(id string, err error) {
	if err == nil || errors.Is(err, remote.ErrNotFound) {
		r.forget(id)
		return
	}
	log.Printf("persist: delete %s: %v", id, err)
	r.scene.Notify(fmt.Sprintf("Could not delete panel %s on the server: %v", id, err))
}

// Pending returns the ids with a debounced write waiting.
func (r *Reconciler) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, e := range r.entries {
		if e.timer != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Flush sends every debounced write now.
func (r *Reconciler) Flush() {
	for _, id := range r.Pending() {
		r.mu.Lock()
		if e, ok := r.entries[id]; ok && e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		r.mu.Unlock()
		r.fire(id)
	}
}

// Close stops the debounce timers and waits for requests in flight. Results
// arriving after Close are dropped.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	for _, e := range r.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	r.mu.Unlock()
	r.wg.Wait()
}
