// Package scene holds the authoritative in-memory panel list for one project,
// the selection cursor, and the merge of remote data with the local cache.
package scene

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"

	"liner-layout/internal/panel"
	"liner-layout/pkg/geometry"
)

// State is the load state of the scene.
type State int

const (
	StateLoading State = iota
	StateEmpty
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Fetcher loads the authoritative panel list.
type Fetcher interface {
	FetchLayout(ctx context.Context, project string) ([]panel.Panel, error)
}

// PositionCache is the durable per-project overlay of panel placements.
type PositionCache interface {
	LoadPositions() (map[string]panel.Placement, error)
	SavePosition(id string, pl panel.Placement) error
	DeletePosition(id string) error
}

// CameraCache persists the camera for a project.
type CameraCache interface {
	LoadCamera() (geometry.Camera, bool, error)
	SaveCamera(cam geometry.Camera) error
}

// Syncer mirrors local edits to the remote store.
type Syncer interface {
	PositionChanged(id string, pos panel.Position)
	PanelAdded(p panel.Panel)
	PanelRemoved(id string)
}

// Store is the scene for one project. Panel order is z-order: later panels
// draw on top and win hit tests.
type Store struct {
	mu sync.RWMutex

	project   string
	fetcher   Fetcher
	positions PositionCache
	camera    CameraCache
	syncer    Syncer

	panels   []panel.Panel
	state    State
	err      error
	selected string

	// ids already reported as invalid since the last load
	reported map[string]bool

	listeners map[EventType][]EventListener
}

// Options configures a Store. Every collaborator is optional.
type Options struct {
	Fetcher   Fetcher
	Positions PositionCache
	Camera    CameraCache
	Syncer    Syncer
}

// NewStore creates an empty store for project.
func NewStore(project string, opts Options) *Store {
	return &Store{
		project:   project,
		fetcher:   opts.Fetcher,
		positions: opts.Positions,
		camera:    opts.Camera,
		syncer:    opts.Syncer,
		state:     StateEmpty,
		reported:  make(map[string]bool),
		listeners: make(map[EventType][]EventListener),
	}
}

// SetSyncer installs the remote mirror after construction.
func (s *Store) SetSyncer(sy Syncer) {
	s.mu.Lock()
	s.syncer = sy
	s.mu.Unlock()
}

// Project returns the project id.
func (s *Store) Project() string {
	return s.project
}

// State returns the load state and the retained error for StateError.
func (s *Store) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.err
}

func (s *Store) setState(st State, err error) {
	s.mu.Lock()
	s.state, s.err = st, err
	s.mu.Unlock()
	s.Emit(EventStateChanged, st)
}

// Load fetches the project, overlays the position cache and replaces the
// panel list. On failure the previous panels are kept and the state becomes
// StateError.
func (s *Store) Load(ctx context.Context) error {
	s.setState(StateLoading, nil)
	if s.fetcher == nil {
		err := fmt.Errorf("scene: no layout source for %s", s.project)
		s.setState(StateError, err)
		return err
	}

	fetched, err := s.fetcher.FetchLayout(ctx, s.project)
	if err != nil {
		err = fmt.Errorf("scene: fetch %s: %w", s.project, err)
		log.Printf("%v", err)
		s.setState(StateError, err)
		return err
	}
	s.install(fetched)
	return nil
}

// LoadPanels installs an already fetched list with the cache overlay.
func (s *Store) LoadPanels(fetched []panel.Panel) {
	s.install(fetched)
}

func (s *Store) install(fetched []panel.Panel) {
	cached := s.loadPositions()
	merged, dropped := dedupe(MergeCached(fetched, cached))
	for _, id := range dropped {
		log.Printf("scene: dropping panel with empty or duplicate id %q", id)
	}

	s.mu.Lock()
	// Panels still waiting for their create survive a reload on top of the
	// fetched list.
	for _, p := range s.panels {
		if panel.IsPendingLocal(p.ID) && !slices.ContainsFunc(merged, func(m panel.Panel) bool { return m.ID == p.ID }) {
			merged = append(merged, p)
		}
	}
	s.panels = merged
	s.reported = make(map[string]bool)
	if s.selected != "" && s.indexOf(s.selected) < 0 {
		s.selected = ""
	}
	s.reportInvalidLocked(merged)
	s.mu.Unlock()

	if len(merged) == 0 {
		s.setState(StateEmpty, nil)
	} else {
		s.setState(StateLoaded, nil)
	}
	s.Emit(EventLoaded, len(merged))
}

func (s *Store) loadPositions() map[string]panel.Placement {
	if s.positions == nil {
		return nil
	}
	cached, err := s.positions.LoadPositions()
	if err != nil {
		log.Printf("scene: read position cache: %v", err)
		return nil
	}
	for id, pl := range cached {
		if err := panel.ValidatePlacement(pl); err != nil {
			log.Printf("scene: clearing cached position for %s: %v", id, err)
			delete(cached, id)
			if err := s.positions.DeletePosition(id); err != nil {
				log.Printf("scene: clear cached position %s: %v", id, err)
			}
		}
	}
	return cached
}

// reportInvalidLocked logs each invalid panel once per load.
func (s *Store) reportInvalidLocked(panels []panel.Panel) {
	for _, p := range panels {
		if s.reported[p.ID] {
			continue
		}
		if err := panel.Validate(p); err != nil {
			s.reported[p.ID] = true
			log.Printf("scene: skipping %v", err)
		}
	}
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.panels, func(p panel.Panel) bool { return p.ID == id })
}

// RawPanels returns every panel, including those failing validation.
func (s *Store) RawPanels() []panel.Panel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]panel.Panel, len(s.panels))
	for i, p := range s.panels {
		out[i] = p.Clone()
	}
	return out
}

// Panels is an alias for RawPanels.
func (s *Store) Panels() []panel.Panel {
	return s.RawPanels()
}

// VisiblePanels returns the valid panels in z-order. The result shares Meta
// maps with the store and must be treated as read-only.
func (s *Store) VisiblePanels() []panel.Panel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]panel.Panel, 0, len(s.panels))
	for _, p := range s.panels {
		if panel.IsValid(p) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of panels, valid or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.panels)
}

// Panel returns the panel with the given id.
func (s *Store) Panel(id string) (panel.Panel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.panels[i].Clone(), true
	}
	return panel.Panel{}, false
}

// Bounds returns the rotated bounds of all valid panels.
func (s *Store) Bounds() (geometry.Rect, bool) {
	visible := s.VisiblePanels()
	rects := make([]geometry.Rect, len(visible))
	for i, p := range visible {
		rects[i] = p.RotatedBounds()
	}
	return geometry.BoundsOf(rects)
}

// UpdatePanelPosition applies a new position optimistically, writes it to
// the position cache and hands it to the syncer. It reports false if the
// panel no longer exists or the position is not finite.
func (s *Store) UpdatePanelPosition(id string, pos panel.Position) bool {
	if !geometry.IsFinite(pos.X) || !geometry.IsFinite(pos.Y) || !geometry.IsFinite(pos.Rotation) {
		return false
	}
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.panels[i] = s.panels[i].WithPosition(pos)
	updated := s.panels[i]
	syncer := s.syncer
	s.mu.Unlock()

	s.cachePlacement(updated)
	if syncer != nil {
		syncer.PositionChanged(id, updated.Position())
	}
	s.Emit(EventPanelsChanged, id)
	return true
}

// AddPanel appends p on top of the z-order. A panel without an id gets a
// pending-local one. The stored panel is returned.
func (s *Store) AddPanel(p panel.Panel) (panel.Panel, error) {
	if p.ID == "" {
		p.ID = panel.NewLocalID()
	}
	p.Rotation = panel.NormalizeRotation(p.Rotation)
	if err := panel.Validate(p); err != nil {
		return panel.Panel{}, err
	}

	s.mu.Lock()
	if s.indexOf(p.ID) >= 0 {
		s.mu.Unlock()
		return panel.Panel{}, fmt.Errorf("scene: panel %s already exists", p.ID)
	}
	p = p.Clone()
	s.panels = append(s.panels, p)
	syncer := s.syncer
	wasEmpty := s.state == StateEmpty
	s.mu.Unlock()

	s.cachePlacement(p)
	if syncer != nil {
		syncer.PanelAdded(p.Clone())
	}
	if wasEmpty {
		s.setState(StateLoaded, nil)
	}
	s.Emit(EventPanelsChanged, p.ID)
	return p.Clone(), nil
}

// RemovePanel deletes the panel locally and asks the syncer to delete it
// remotely.
func (s *Store) RemovePanel(id string) bool {
	syncer, ok := s.remove(id)
	if !ok {
		return false
	}
	if syncer != nil {
		syncer.PanelRemoved(id)
	}
	return true
}

// Delete removes a panel the remote store no longer knows about. The cache
// entry is pruned and nothing is sent remotely.
func (s *Store) Delete(id string) bool {
	_, ok := s.remove(id)
	return ok
}

func (s *Store) remove(id string) (Syncer, bool) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, false
	}
	s.panels = slices.Delete(s.panels, i, i+1)
	selectionCleared := s.selected == id
	if selectionCleared {
		s.selected = ""
	}
	syncer := s.syncer
	empty := len(s.panels) == 0 && s.state == StateLoaded
	s.mu.Unlock()

	if s.positions != nil {
		if err := s.positions.DeletePosition(id); err != nil {
			log.Printf("scene: prune cached position %s: %v", id, err)
		}
	}
	if selectionCleared {
		s.Emit(EventSelectionChanged, "")
	}
	if empty {
		s.setState(StateEmpty, nil)
	}
	s.Emit(EventPanelsChanged, id)
	return syncer, true
}

// ReplaceID renames a pending-local panel once the remote store confirms it.
func (s *Store) ReplaceID(oldID, newID string) bool {
	if newID == "" || oldID == newID {
		return false
	}
	s.mu.Lock()
	i := s.indexOf(oldID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	var renamed panel.Panel
	if j := s.indexOf(newID); j >= 0 {
		// A reload already fetched the created panel; the local copy carries
		// the newer position.
		s.panels[j] = s.panels[j].WithPosition(s.panels[i].Position())
		renamed = s.panels[j]
		s.panels = slices.Delete(s.panels, i, i+1)
	} else {
		s.panels[i].ID = newID
		renamed = s.panels[i]
	}
	selected := s.selected == oldID
	if selected {
		s.selected = newID
	}
	s.mu.Unlock()

	if s.positions != nil {
		if err := s.positions.DeletePosition(oldID); err != nil {
			log.Printf("scene: prune cached position %s: %v", oldID, err)
		}
	}
	s.cachePlacement(renamed)
	if selected {
		s.Emit(EventSelectionChanged, newID)
	}
	s.Emit(EventPanelsChanged, newID)
	return true
}

// ApplyRemote merges a server echo for a panel. The position fields that
// were sent keep priority; the server wins for everything else.
func (s *Store) ApplyRemote(remote panel.Panel, sent panel.Position) bool {
	s.mu.Lock()
	i := s.indexOf(remote.ID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	merged := remote.Clone().WithPosition(sent)
	s.panels[i] = merged
	s.reportInvalidLocked([]panel.Panel{merged})
	s.mu.Unlock()

	s.Emit(EventPanelsChanged, remote.ID)
	return true
}

// BringToFront moves the panel to the top of the z-order.
func (s *Store) BringToFront(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	if i == len(s.panels)-1 {
		s.mu.Unlock()
		return true
	}
	p := s.panels[i]
	s.panels = append(slices.Delete(s.panels, i, i+1), p)
	s.mu.Unlock()

	s.Emit(EventPanelsChanged, id)
	return true
}

// Select moves the selection cursor. An empty id clears it.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	if id != "" && s.indexOf(id) < 0 {
		s.mu.Unlock()
		return false
	}
	changed := s.selected != id
	s.selected = id
	s.mu.Unlock()

	if changed {
		s.Emit(EventSelectionChanged, id)
	}
	return true
}

// ClearSelection clears the selection cursor.
func (s *Store) ClearSelection() {
	s.Select("")
}

// SelectedID returns the selected id or "".
func (s *Store) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Selected returns the selected panel.
func (s *Store) Selected() (panel.Panel, bool) {
	id := s.SelectedID()
	if id == "" {
		return panel.Panel{}, false
	}
	return s.Panel(id)
}

func (s *Store) cachePlacement(p panel.Panel) {
	if s.positions == nil {
		return
	}
	if err := s.positions.SavePosition(p.ID, p.Placement()); err != nil {
		log.Printf("scene: cache position %s: %v", p.ID, err)
	}
}

// SaveCamera persists the camera for the project.
func (s *Store) SaveCamera(cam geometry.Camera) error {
	if s.camera == nil {
		return nil
	}
	if !cam.IsValid() {
		return fmt.Errorf("scene: refusing to cache invalid camera %+v", cam)
	}
	return s.camera.SaveCamera(cam)
}

// LoadCamera returns the cached camera if there is a usable one.
func (s *Store) LoadCamera() (geometry.Camera, bool) {
	if s.camera == nil {
		return geometry.Camera{}, false
	}
	cam, ok, err := s.camera.LoadCamera()
	if err != nil {
		log.Printf("scene: read cached camera: %v", err)
		return geometry.Camera{}, false
	}
	if !ok || !cam.IsValid() {
		return geometry.Camera{}, false
	}
	return cam, true
}
