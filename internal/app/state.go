// Package app wires the layout engine for one project and manages its
// lifecycle.
package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"sync"
	"time"

	"liner-layout/internal/cache"
	"liner-layout/internal/config"
	"liner-layout/internal/interaction"
	"liner-layout/internal/panel"
	"liner-layout/internal/persist"
	"liner-layout/internal/remote"
	"liner-layout/internal/render"
	"liner-layout/internal/scene"
	"liner-layout/internal/shape"
	"liner-layout/internal/viewport"
	"liner-layout/pkg/geometry"
)

// fitPaddingPx is the margin kept around content by Fit.
const fitPaddingPx = 40

// State holds the engine for the open project.
//
// UI callbacks, frame timers and network results arrive on different
// goroutines; every touch of the machine, viewport or renderer goes through
// Do. Scene event listeners run inside Do and must not call it again.
type State struct {
	mu sync.Mutex

	cfg    *config.Client
	cache  *cache.Cache
	Remote *remote.Client

	Scene    *scene.Store
	View     *viewport.Controller
	Shapes   *shape.Registry
	Machine  *interaction.Machine
	Renderer *render.Renderer

	reconciler *persist.Reconciler
	loop       *render.Loop
	autosave   *Autosaver

	presentMu sync.Mutex
	present   func()

	needsFit  bool
	savedCam  geometry.Camera
	closeOnce sync.Once
}

// NewState opens the cache and builds the engine for cfg.Project.
func NewState(cfg *config.Client) (*State, error) {
	c, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	client := remote.NewClient(cfg.ServerURL, nil)
	client.SetToken(cfg.Token)
	return newState(cfg, c, client), nil
}

func newState(cfg *config.Client, c *cache.Cache, client *remote.Client) *State {
	e := cfg.Engine
	s := &State{
		cfg:    cfg,
		cache:  c,
		Remote: client,
		Shapes: shape.NewRegistry(e.Handles()),
		View:   viewport.NewController(e.Viewport()),
	}

	var positions scene.PositionCache
	var camera scene.CameraCache
	if c != nil {
		scope := c.Scope(cfg.Project)
		positions, camera = scope, scope
	}
	s.Scene = scene.NewStore(cfg.Project, scene.Options{
		Fetcher:   client,
		Positions: positions,
		Camera:    camera,
	})
	s.reconciler = persist.New(client, s.Scene, persist.Options{
		Debounce: e.Debounce,
		Dispatch: s.Do,
	})
	s.Scene.SetSyncer(s.reconciler)

	s.Machine = interaction.New(e.Interaction(), s.Scene, s.Shapes, s.View, viewport.NewZoomThrottle(e.FrameInterval))
	s.Renderer = render.New(e.Render(), s.Shapes, s.View, s.Scene, s.Machine)
	s.loop = render.NewLoop(e.FrameInterval, s.presentFrame)

	s.Machine.OnChange(s.RequestFrame)
	for _, ev := range []scene.EventType{scene.EventPanelsChanged, scene.EventSelectionChanged, scene.EventLoaded} {
		s.Scene.On(ev, func(interface{}) { s.RequestFrame() })
	}

	s.autosave = NewAutosaver(5*time.Second, s.saveCameraIfChanged)
	return s
}

// Config returns the client configuration.
func (s *State) Config() *config.Client {
	return s.cfg
}

// Do runs f with exclusive access to the engine and schedules a frame.
func (s *State) Do(f func()) {
	s.mu.Lock()
	f()
	s.mu.Unlock()
	s.RequestFrame()
}

// SetPresenter installs the callback that repaints the canvas.
func (s *State) SetPresenter(fn func()) {
	s.presentMu.Lock()
	s.present = fn
	s.presentMu.Unlock()
}

func (s *State) presentFrame() {
	s.presentMu.Lock()
	fn := s.present
	s.presentMu.Unlock()
	if fn != nil {
		fn()
	}
}

// RequestFrame marks the canvas dirty.
func (s *State) RequestFrame() {
	s.loop.Request()
}

// Frame returns the image for a w x h canvas. Inside the frame budget the
// previous frame is returned and another present is scheduled.
func (s *State) Frame(w, h int, now time.Time) image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	vw, vh := s.View.Viewport()
	if float64(w) != vw || float64(h) != vh {
		s.View.SetViewport(float64(w), float64(h))
	}
	if s.needsFit && w > 0 && h > 0 {
		s.fitLocked()
		s.needsFit = false
	}
	s.Machine.Tick(now)

	img, ok := s.Renderer.Frame(now)
	if !ok {
		s.loop.RequestAfter(s.Renderer.Until(now))
		if last := s.Renderer.Last(); last != nil {
			return last
		}
		return s.Renderer.Draw()
	}
	return img
}

// Load fetches the project and positions the camera from the cache, or fits
// the content when nothing is cached.
func (s *State) Load(ctx context.Context) error {
	s.autosave.Start()
	err := s.Scene.Load(ctx)

	s.Do(func() {
		if cam, ok := s.Scene.LoadCamera(); ok && s.View.SetCamera(cam) {
			s.savedCam = s.View.Camera()
			return
		}
		s.needsFit = true
		if w, h := s.View.Viewport(); w > 0 && h > 0 {
			s.fitLocked()
			s.needsFit = false
		}
	})
	return err
}

// Login signs in and retries creates that were held while signed out.
func (s *State) Login(ctx context.Context, login, password string) error {
	if err := s.Remote.Login(ctx, login, password); err != nil {
		return err
	}
	s.reconciler.Retry(s.Scene.Panels())
	return nil
}

func (s *State) fitLocked() bool {
	bounds, ok := s.Scene.Bounds()
	if !ok {
		return false
	}
	return s.View.FitToContent(bounds, fitPaddingPx)
}

// Fit frames every valid panel.
func (s *State) Fit() {
	s.Do(func() { s.fitLocked() })
}

// ZoomIn zooms around the canvas center.
func (s *State) ZoomIn() {
	s.Do(func() { s.View.ZoomBy(s.Machine.Config().ZoomStep) })
}

// ZoomOut zooms out around the canvas center.
func (s *State) ZoomOut() {
	s.Do(func() { s.View.ZoomBy(1 / s.Machine.Config().ZoomStep) })
}

// AddPanel places a new panel centered in the view and selects it.
func (s *State) AddPanel(p panel.Panel) (panel.Panel, error) {
	var (
		added panel.Panel
		err   error
	)
	s.Do(func() {
		w, h := s.View.Viewport()
		c := s.View.ScreenToWorld(geometry.Point2D{X: w / 2, Y: h / 2})
		p.X = c.X - p.Width/2
		p.Y = c.Y - p.Height/2
		if step := s.Machine.Config().GridStep; s.Machine.Config().Snap && step > 0 {
			p.X = snapTo(p.X, step)
			p.Y = snapTo(p.Y, step)
		}
		added, err = s.Scene.AddPanel(p)
		if err == nil {
			s.Scene.Select(added.ID)
		}
	})
	return added, err
}

// saveCameraIfChanged persists the camera when it moved since the last save.
func (s *State) saveCameraIfChanged() {
	s.mu.Lock()
	cam := s.View.Camera()
	changed := cam != s.savedCam
	s.mu.Unlock()
	if !changed {
		return
	}
	if err := s.Scene.SaveCamera(cam); err != nil {
		log.Printf("app: save camera: %v", err)
		return
	}
	s.mu.Lock()
	s.savedCam = cam
	s.mu.Unlock()
}

// Close flushes pending writes, saves the camera and releases resources.
func (s *State) Close() {
	s.closeOnce.Do(func() {
		s.autosave.Stop()
		s.Do(func() { s.Machine.Cancel() })
		s.saveCameraIfChanged()
		s.reconciler.Flush()
		s.reconciler.Close()
		s.loop.Stop()

		s.mu.Lock()
		if err := s.Renderer.Close(); err != nil {
			log.Printf("app: close renderer: %v", err)
		}
		s.mu.Unlock()
		if s.cache != nil {
			if err := s.cache.Close(); err != nil {
				log.Printf("app: close cache: %v", err)
			}
		}
	})
}

func snapTo(v, step float64) float64 {
	return math.Round(v/step) * step
}
