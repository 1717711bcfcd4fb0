package scene

import (
	"liner-layout/internal/panel"
)

// MergeCached overlays cached placements onto a fetched panel list. The cache
// wins for position, rotation and shape; the server wins for everything else.
// Entries that fail validation are ignored. The input is not modified.
func MergeCached(fetched []panel.Panel, cached map[string]panel.Placement) []panel.Panel {
	out := make([]panel.Panel, len(fetched))
	for i, p := range fetched {
		p = p.Clone()
		if pl, ok := cached[p.ID]; ok && panel.ValidatePlacement(pl) == nil {
			p = p.WithPosition(pl.Position)
			p.Shape = pl.Shape
		}
		out[i] = p
	}
	return out
}

// dedupe keeps the first panel for every id and drops panels without one.
func dedupe(panels []panel.Panel) (kept []panel.Panel, dropped []string) {
	seen := make(map[string]bool, len(panels))
	kept = make([]panel.Panel, 0, len(panels))
	for _, p := range panels {
		if p.ID == "" || seen[p.ID] {
			dropped = append(dropped, p.ID)
			continue
		}
		seen[p.ID] = true
		kept = append(kept, p)
	}
	return kept, dropped
}
