package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClusterCRUD(t *testing.T) {
	store := newTestStore(t)

	cluster := &types.Cluster{
		ID:            "c1",
		Name:          "prod",
		ReleaseID:     "r1",
		EditableAttrs: types.ConfigTree{"common": map[string]interface{}{"debug": map[string]interface{}{"value": true}}},
	}
	require.NoError(t, store.CreateCluster(cluster))

	got, err := store.GetCluster("c1")
	require.NoError(t, err)
	assert.Equal(t, "prod", got.Name)
	assert.Equal(t, cluster.EditableAttrs, got.EditableAttrs)

	byName, err := store.GetClusterByName("prod")
	require.NoError(t, err)
	assert.Equal(t, "c1", byName.ID)

	_, err = store.GetClusterByName("staging")
	assert.ErrorIs(t, err, ErrNotFound)

	got.Name = "prod-renamed"
	require.NoError(t, store.UpdateCluster(got))
	clusters, err := store.ListClusters()
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "prod-renamed", clusters[0].Name)

	require.NoError(t, store.DeleteCluster("c1"))
	_, err = store.GetCluster("c1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "cluster c1")
}

func TestQueriesByRelation(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateNodeGroup(&types.NodeGroup{ID: "g1", ClusterID: "c1", Name: "default", IsDefault: true}))
	require.NoError(t, store.CreateNodeGroup(&types.NodeGroup{ID: "g2", ClusterID: "c1", Name: "rack-2"}))
	require.NoError(t, store.CreateNodeGroup(&types.NodeGroup{ID: "g3", ClusterID: "c2", Name: "default", IsDefault: true}))

	groups, err := store.ListNodeGroupsByCluster("c1")
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	require.NoError(t, store.CreateNetworkGroup(&types.NetworkGroup{ID: "n1", Name: "management", GroupID: "g1"}))
	require.NoError(t, store.CreateNetworkGroup(&types.NetworkGroup{ID: "n2", Name: "public", GroupID: "g1"}))
	require.NoError(t, store.CreateNetworkGroup(&types.NetworkGroup{ID: "admin", Name: types.NetworkAdmin}))

	nets, err := store.ListNetworkGroupsByNodeGroup("g1")
	require.NoError(t, err)
	assert.Len(t, nets, 2)

	admin, err := store.ListNetworkGroupsByNodeGroup("")
	require.NoError(t, err)
	require.Len(t, admin, 1)
	assert.Equal(t, types.NetworkAdmin, admin[0].Name)

	require.NoError(t, store.CreateNode(&types.Node{ID: "node-1", ClusterID: "c1"}))
	require.NoError(t, store.CreateNode(&types.Node{ID: "node-2", ClusterID: "c2"}))
	nodes, err := store.ListNodesByCluster("c2")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "node-2", nodes[0].ID)

	require.NoError(t, store.PutVIP(&types.VIP{NetworkGroupID: "n1", Name: "management", Address: "10.0.0.2"}))
	require.NoError(t, store.PutVIP(&types.VIP{NetworkGroupID: "n1", Name: "vrouter", Address: "10.0.0.3"}))
	vips, err := store.ListVIPsByNetworkGroup("n1")
	require.NoError(t, err)
	assert.Len(t, vips, 2)

	vip, err := store.GetVIP("n1", "vrouter")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", vip.Address)

	require.NoError(t, store.DeleteVIP("n1", "vrouter"))
	_, err = store.GetVIP("n1", "vrouter")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelations(t *testing.T) {
	store := newTestStore(t)

	first := &types.UpgradeRelation{OrigClusterID: "orig", SeedClusterID: "seed"}
	require.NoError(t, store.CreateRelation(first))

	// The orig cluster cannot be upgraded twice
	err := store.CreateRelation(&types.UpgradeRelation{OrigClusterID: "orig", SeedClusterID: "other"})
	assert.ErrorIs(t, err, ErrDuplicateRelation)

	// Nor can a seed cluster become an orig cluster while related
	err = store.CreateRelation(&types.UpgradeRelation{OrigClusterID: "seed", SeedClusterID: "other"})
	assert.ErrorIs(t, err, ErrDuplicateRelation)

	for _, id := range []string{"orig", "seed"} {
		relation, err := store.GetRelation(id)
		require.NoError(t, err)
		assert.Equal(t, "orig", relation.OrigClusterID)
		assert.Equal(t, "seed", relation.SeedClusterID)
	}

	_, err = store.GetRelation("unrelated")
	assert.ErrorIs(t, err, ErrNotFound)

	relations, err := store.ListRelations()
	require.NoError(t, err)
	assert.Len(t, relations, 1)

	require.NoError(t, store.DeleteRelation("seed"))
	require.NoError(t, store.DeleteRelation("seed"))
	_, err = store.GetRelation("orig")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.CreateRelation(&types.UpgradeRelation{OrigClusterID: "orig", SeedClusterID: "other"}))
}

func TestCreateRelationConcurrent(t *testing.T) {
	store := newTestStore(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CreateRelation(&types.UpgradeRelation{OrigClusterID: "orig", SeedClusterID: "seed"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrDuplicateRelation)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestTasks(t *testing.T) {
	store := newTestStore(t)

	task := &types.Task{ID: "t1", Name: types.TaskProvision, ClusterID: "c1", Status: types.TaskStatusPending}
	require.NoError(t, store.CreateTask(task))

	task.Status = types.TaskStatusReady
	require.NoError(t, store.UpdateTask(task))

	got, err := store.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusReady, got.Status)

	tasks, err := store.ListTasksByCluster("c1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestReleases(t *testing.T) {
	store := newTestStore(t)

	release := &types.Release{
		ID:                 "r1",
		Name:               "Liberty on Ubuntu",
		EnvironmentVersion: "8.0",
		NetworkRolesMetadata: []types.NetworkRole{
			{ID: "public/vip", DefaultMapping: "public"},
		},
	}
	require.NoError(t, store.CreateRelease(release))

	got, err := store.GetRelease("r1")
	require.NoError(t, err)
	assert.Equal(t, release.NetworkRolesMetadata, got.NetworkRolesMetadata)

	releases, err := store.ListReleases()
	require.NoError(t, err)
	assert.Len(t, releases, 1)
}
