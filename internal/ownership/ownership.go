// Package ownership implements the owner graph and its four detectors
// (§4.7): shell chains, post-sanction reshuffling, circular ownership, and
// shared-address-with-sanctioned-entity, plus sanctions propagation across
// owner clusters. Grounded on the teacher's ownership-cluster walk in
// internal/heuristics/entity_clustering.go, generalized from Bitcoin
// address clusters to maritime registered owners.
package ownership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const (
	maxChainDepth           = 10
	shellChainMinDepth      = 2
	reshufflingMaxChanges   = 2
	reshufflingWindow       = 12 * 30 * 24 * time.Hour
)

// Finding is one detector hit against an owner, kept separate from
// OwnerCluster so the caller decides how (or whether) to persist it.
type Finding struct {
	OwnerID int64
	Kind    string // shell_chain|post_sanction_reshuffling|circular_ownership|shared_address_sanctioned
	Detail  string
}

// Normalize lowercases and trims an owner name for clustering, matching
// the spec's own definition of "same owner" for grouping purposes.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Graph holds every owner loaded for one analysis pass, indexed for the
// parent-chain and shared-address walks below.
type Graph struct {
	owners   map[int64]models.Owner
	byParent map[int64][]int64
}

// BuildGraph loads every owner via OwnerRepo.All and indexes parent/child
// edges for the detectors.
func BuildGraph(ctx context.Context, owners *store.OwnerRepo) (*Graph, error) {
	all, err := owners.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("ownership: loading owners: %w", err)
	}
	g := &Graph{owners: make(map[int64]models.Owner, len(all)), byParent: map[int64][]int64{}}
	for _, o := range all {
		g.owners[o.ID] = o
		if o.ParentOwnerID != nil {
			g.byParent[*o.ParentOwnerID] = append(g.byParent[*o.ParentOwnerID], o.ID)
		}
	}
	return g, nil
}

// ShellChainDepth walks parentOwnerID upward from ownerID, guarding against
// cycles with maxChainDepth, and returns the number of hops reached before
// either a root owner (no parent) or the guard fires.
func (g *Graph) ShellChainDepth(ownerID int64) int {
	depth := 0
	current, ok := g.owners[ownerID]
	if !ok {
		return 0
	}
	for current.ParentOwnerID != nil && depth < maxChainDepth {
		next, ok := g.owners[*current.ParentOwnerID]
		if !ok {
			break
		}
		current = next
		depth++
	}
	return depth
}

// DetectShellChains flags every owner whose parent chain exceeds
// shellChainMinDepth hops.
func (g *Graph) DetectShellChains() []Finding {
	var out []Finding
	for id := range g.owners {
		depth := g.ShellChainDepth(id)
		if depth > shellChainMinDepth {
			out = append(out, Finding{OwnerID: id, Kind: "shell_chain", Detail: fmt.Sprintf("parent chain depth %d", depth)})
		}
	}
	return out
}

// DetectCircularOwnership walks every owner's parent chain looking for a
// repeat visit within maxChainDepth hops, the signature of a cycle rather
// than a merely deep but acyclic chain.
func (g *Graph) DetectCircularOwnership() []Finding {
	var out []Finding
	for id := range g.owners {
		if g.hasCycleFrom(id) {
			out = append(out, Finding{OwnerID: id, Kind: "circular_ownership", Detail: "parent_owner_id cycle detected"})
		}
	}
	return out
}

func (g *Graph) hasCycleFrom(ownerID int64) bool {
	visited := map[int64]bool{ownerID: true}
	current, ok := g.owners[ownerID]
	if !ok {
		return false
	}
	for depth := 0; current.ParentOwnerID != nil && depth < maxChainDepth; depth++ {
		parentID := *current.ParentOwnerID
		if visited[parentID] {
			return true
		}
		visited[parentID] = true
		next, ok := g.owners[parentID]
		if !ok {
			return false
		}
		current = next
	}
	return false
}

// DetectSharedAddressWithSanctioned flags any non-sanctioned owner sharing
// a (country, address) pair with a known sanctioned owner.
func (g *Graph) DetectSharedAddressWithSanctioned() []Finding {
	type key struct{ country, address string }
	sanctionedKeys := map[key]bool{}
	for _, o := range g.owners {
		if o.IsSanctioned && o.Address != "" {
			sanctionedKeys[key{o.Country, strings.ToLower(strings.TrimSpace(o.Address))}] = true
		}
	}
	var out []Finding
	for id, o := range g.owners {
		if o.IsSanctioned || o.Address == "" {
			continue
		}
		if sanctionedKeys[key{o.Country, strings.ToLower(strings.TrimSpace(o.Address))}] {
			out = append(out, Finding{OwnerID: id, Kind: "shared_address_sanctioned", Detail: "shares address with a sanctioned owner"})
		}
	}
	return out
}

// DetectPostSanctionReshuffling flags vesselID if it has accumulated more
// than reshufflingMaxChanges owner changes within the trailing
// reshufflingWindow.
func DetectPostSanctionReshuffling(ctx context.Context, changes *store.OwnershipChangeRepo, vesselID int64, asOf time.Time) (bool, int, error) {
	since := asOf.Add(-reshufflingWindow)
	count, err := changes.CountSince(ctx, vesselID, since)
	if err != nil {
		return false, 0, fmt.Errorf("ownership: counting ownership changes for vessel %d: %w", vesselID, err)
	}
	return count > reshufflingMaxChanges, count, nil
}

// Clusters groups owners by normalized name into OwnerCluster rows and
// propagates sanctions: any sanctioned member flips the whole cluster's
// IsSanctioned flag, since scoring reads the cluster flag rather than the
// individual owner.
func (g *Graph) Clusters() []models.OwnerCluster {
	byName := map[string][]int64{}
	for id, o := range g.owners {
		name := Normalize(o.NormalizedName)
		byName[name] = append(byName[name], id)
	}
	var out []models.OwnerCluster
	for _, ids := range byName {
		sanctioned := false
		for _, id := range ids {
			if g.owners[id].IsSanctioned {
				sanctioned = true
				break
			}
		}
		out = append(out, models.OwnerCluster{OwnerIDs: ids, IsSanctioned: sanctioned})
	}
	return out
}

// Persist upserts every cluster via OwnerClusterRepo, reusing an existing
// cluster row for any owner already assigned to one so repeated analysis
// passes update in place instead of accumulating duplicate clusters.
func Persist(ctx context.Context, clusters *store.OwnerClusterRepo, computed []models.OwnerCluster) error {
	for _, c := range computed {
		if len(c.OwnerIDs) == 0 {
			continue
		}
		existing, found, err := clusters.ByOwner(ctx, c.OwnerIDs[0])
		if err != nil {
			return fmt.Errorf("ownership: looking up existing cluster for owner %d: %w", c.OwnerIDs[0], err)
		}
		if found {
			c.ID = existing.ID
		}
		if _, err := clusters.Upsert(ctx, c); err != nil {
			return fmt.Errorf("ownership: persisting owner cluster: %w", err)
		}
	}
	return nil
}
