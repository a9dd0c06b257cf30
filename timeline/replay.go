package timeline

import "fmt"

// ReplayFromTrace re-applies a previously recorded event trace (as returned
// by EventTrace) against t, one external update at a time, in order. Each
// entry is replayed as an ordinary external update — advancing the frame
// counter and appending to t's own event trace exactly as if the original
// producer had called Send/Set again — so replaying into a freshly
// constructed timeline with the same graph shape reproduces the original
// frame sequence exactly.
//
// trace entries must name nodes that exist in t; this is always true when t
// was built by the same construction function as the timeline the trace was
// recorded from.
func ReplayFromTrace(t *Timeline, trace []ExternalEvent) error {
	for i, entry := range trace {
		reentrant := t.lockForUpdate()
		_, exists := t.nodes[entry.NodeID]
		t.unlockForUpdate(reentrant)
		if !exists {
			return fmt.Errorf("timeline: replay entry %d references unknown node %d", i, entry.NodeID)
		}
		if err := t.updateNodeValue(entry.NodeID, entry.Value); err != nil {
			return fmt.Errorf("timeline: replay entry %d (node %d): %w", i, entry.NodeID, err)
		}
	}
	return nil
}
