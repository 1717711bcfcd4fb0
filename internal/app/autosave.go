package app

import (
	"sync"
	"time"
)

// Autosaver periodically runs a save callback in the background. The app
// uses it to persist the camera while the user pans and zooms.
type Autosaver struct {
	checkInterval time.Duration
	save          func()

	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	running bool
}

// NewAutosaver creates a saver calling save every checkInterval once started.
func NewAutosaver(checkInterval time.Duration, save func()) *Autosaver {
	return &Autosaver{
		checkInterval: checkInterval,
		save:          save,
	}
}

// Start begins the save loop. Starting a running saver does nothing.
func (a *Autosaver) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	// Fresh channels in case we're restarting
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	a.running = true
	go a.loop(a.stopCh, a.done)
}

// Stop ends the loop and waits for a save in progress.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.stopCh)
	done := a.done
	a.mu.Unlock()
	<-done
}

func (a *Autosaver) loop(stopCh, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			a.save()
		}
	}
}
