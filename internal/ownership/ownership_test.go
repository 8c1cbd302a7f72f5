package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radiancefleet/core/pkg/models"
)

func ptr(v int64) *int64 { return &v }

func TestNormalize(t *testing.T) {
	assert.Equal(t, "acme shipping", Normalize("  Acme Shipping  "))
}

func graphOf(owners ...models.Owner) *Graph {
	g := &Graph{owners: map[int64]models.Owner{}, byParent: map[int64][]int64{}}
	for _, o := range owners {
		g.owners[o.ID] = o
		if o.ParentOwnerID != nil {
			g.byParent[*o.ParentOwnerID] = append(g.byParent[*o.ParentOwnerID], o.ID)
		}
	}
	return g
}

func TestShellChainDepth(t *testing.T) {
	g := graphOf(
		models.Owner{ID: 1},
		models.Owner{ID: 2, ParentOwnerID: ptr(1)},
		models.Owner{ID: 3, ParentOwnerID: ptr(2)},
		models.Owner{ID: 4, ParentOwnerID: ptr(3)},
	)
	assert.Equal(t, 0, g.ShellChainDepth(1))
	assert.Equal(t, 1, g.ShellChainDepth(2))
	assert.Equal(t, 3, g.ShellChainDepth(4))
}

func TestDetectShellChains_FlagsOnlyBeyondMinDepth(t *testing.T) {
	g := graphOf(
		models.Owner{ID: 1},
		models.Owner{ID: 2, ParentOwnerID: ptr(1)},
		models.Owner{ID: 3, ParentOwnerID: ptr(2)},
		models.Owner{ID: 4, ParentOwnerID: ptr(3)},
	)
	findings := g.DetectShellChains()
	var flagged []int64
	for _, f := range findings {
		flagged = append(flagged, f.OwnerID)
		assert.Equal(t, "shell_chain", f.Kind)
	}
	assert.ElementsMatch(t, []int64{4}, flagged)
}

func TestDetectCircularOwnership(t *testing.T) {
	g := graphOf(
		models.Owner{ID: 1, ParentOwnerID: ptr(2)},
		models.Owner{ID: 2, ParentOwnerID: ptr(1)},
		models.Owner{ID: 3},
	)
	findings := g.DetectCircularOwnership()
	var flagged []int64
	for _, f := range findings {
		flagged = append(flagged, f.OwnerID)
	}
	assert.Contains(t, flagged, int64(1))
	assert.Contains(t, flagged, int64(2))
	assert.NotContains(t, flagged, int64(3))
}

func TestDetectSharedAddressWithSanctioned(t *testing.T) {
	g := graphOf(
		models.Owner{ID: 1, Country: "PA", Address: "1 Harbor Rd", IsSanctioned: true},
		models.Owner{ID: 2, Country: "PA", Address: "1 Harbor Rd"},
		models.Owner{ID: 3, Country: "PA", Address: "2 Other Rd"},
	)
	findings := g.DetectSharedAddressWithSanctioned()
	assert.Len(t, findings, 1)
	assert.Equal(t, int64(2), findings[0].OwnerID)
}

func TestClusters_SanctionPropagatesAcrossMembers(t *testing.T) {
	g := graphOf(
		models.Owner{ID: 1, NormalizedName: "acme shipping", IsSanctioned: true},
		models.Owner{ID: 2, NormalizedName: "ACME SHIPPING"},
		models.Owner{ID: 3, NormalizedName: "other co"},
	)
	clusters := g.Clusters()
	require := map[string]models.OwnerCluster{}
	for _, c := range clusters {
		for _, id := range c.OwnerIDs {
			if id == 1 || id == 2 {
				require["acme"] = c
			}
			if id == 3 {
				require["other"] = c
			}
		}
	}
	assert.True(t, require["acme"].IsSanctioned)
	assert.False(t, require["other"].IsSanctioned)
	assert.ElementsMatch(t, []int64{1, 2}, require["acme"].OwnerIDs)
}
