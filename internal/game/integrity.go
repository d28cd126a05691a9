package game

// checkIntegrity prunes every player-owned structure that is no longer
// link-reachable from that player's starter hub. Destruction is collected
// across all players and applied in one batch, which keeps the pass
// idempotent and independent of player iteration order. Callers must hold
// g.mu.
func (g *Game) checkIntegrity() {
	pending := make(map[string]bool)

	// Adjacency over links in either direction. Traversal is filtered by
	// entity ownership, not link ownership, so each walk stays inside a
	// single player's subgraph.
	adjacency := make(map[string][]string, len(g.links))
	for _, l := range g.links {
		adjacency[l.FromID] = append(adjacency[l.FromID], l.ToID)
		adjacency[l.ToID] = append(adjacency[l.ToID], l.FromID)
	}

	for _, playerID := range g.playerOrder {
		starter := g.starterHub(playerID)
		if starter == nil {
			// No network left to preserve.
			continue
		}

		reached := map[string]bool{starter.ID: true}
		queue := []string{starter.ID}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, next := range adjacency[current] {
				if reached[next] {
					continue
				}
				e := g.entityByID(next)
				if e == nil || e.Owner != playerID {
					continue
				}
				reached[next] = true
				queue = append(queue, next)
			}
		}

		for _, e := range g.entities {
			if e.Owner == playerID && !reached[e.ID] {
				pending[e.ID] = true
			}
		}
	}

	g.destroyBatch(pending)
}
