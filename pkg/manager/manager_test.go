package manager

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/events"
	"github.com/cuemby/clusterupgrade/pkg/storage"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(&Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown() })
	return mgr
}

func testRelease() *types.Release {
	return &types.Release{
		Name:               "Mitaka on Ubuntu 14.04",
		Version:            "mitaka-9.0",
		EnvironmentVersion: "9.0",
		Attributes: types.ReleaseAttrs{
			Editable: types.ConfigTree{
				"common": map[string]interface{}{
					"debug": map[string]interface{}{"value": false},
				},
			},
			Generated: types.ConfigTree{"mysql": map[string]interface{}{"root_password": "secret"}},
		},
		NetworksMetadata: []types.NetworkMeta{
			{Name: types.NetworkAdmin, CIDR: "10.30.0.0/24"},
			{Name: types.NetworkPublic, CIDR: "172.16.0.0/24", Gateway: "172.16.0.1"},
			{Name: types.NetworkManagement, CIDR: "192.168.0.0/24", VLANStart: 101},
		},
	}
}

func TestCreateCluster(t *testing.T) {
	mgr := newTestManager(t)
	sub := mgr.GetEventBroker().Subscribe()

	release := testRelease()
	require.NoError(t, mgr.CreateRelease(release))
	assert.NotEmpty(t, release.ID)
	assert.Equal(t, types.ReleaseStateAvailable, release.State)

	cluster, err := mgr.CreateCluster(types.ClusterCreateData{
		Name:                "prod",
		ReleaseID:           release.ID,
		NetSegmentationType: "vlan",
	})
	require.NoError(t, err)

	assert.Equal(t, "ha_compact", cluster.Mode)
	assert.Equal(t, "neutron", cluster.NetProvider)
	assert.Equal(t, types.ClusterStatusNew, cluster.Status)
	assert.Equal(t, "vlan", cluster.NetworkingParameters["segmentation_type"])
	assert.Equal(t, release.Attributes.Editable, cluster.EditableAttrs)

	// Attributes are copied, not shared with the release
	cluster.EditableAttrs["common"].(map[string]interface{})["debug"].(map[string]interface{})["value"] = true
	assert.Equal(t, false, release.Attributes.Editable["common"].(map[string]interface{})["debug"].(map[string]interface{})["value"])

	group, err := mgr.DefaultNodeGroup(cluster.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultNodeGroupName, group.Name)

	nets, err := mgr.Store().ListNetworkGroupsByNodeGroup(group.ID)
	require.NoError(t, err)
	require.Len(t, nets, 2)
	for _, ng := range nets {
		assert.NotEqual(t, types.NetworkAdmin, ng.Name)
		assert.Equal(t, release.ID, ng.ReleaseID)
	}

	admin, err := mgr.NetworkManager(cluster).AdminNetworkGroup()
	require.NoError(t, err)
	assert.Equal(t, "10.30.0.0/24", admin.CIDR)

	event := <-sub
	assert.Equal(t, events.EventClusterCreated, event.Type)
	assert.Equal(t, cluster.ID, event.Metadata["cluster_id"])
}

func TestCreateClusterErrors(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.CreateCluster(types.ClusterCreateData{ReleaseID: "r1"})
	assert.EqualError(t, err, "cluster name is required")

	_, err = mgr.CreateCluster(types.ClusterCreateData{Name: "prod", ReleaseID: "missing"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAdminNetworkIsShared(t *testing.T) {
	mgr := newTestManager(t)
	release := testRelease()
	require.NoError(t, mgr.CreateRelease(release))

	for _, name := range []string{"a", "b"} {
		_, err := mgr.CreateCluster(types.ClusterCreateData{Name: name, ReleaseID: release.ID})
		require.NoError(t, err)
	}

	nets, err := mgr.Store().ListNetworkGroupsByNodeGroup("")
	require.NoError(t, err)
	assert.Len(t, nets, 1)
}

func TestCreateNodeGroup(t *testing.T) {
	mgr := newTestManager(t)
	release := testRelease()
	require.NoError(t, mgr.CreateRelease(release))
	cluster, err := mgr.CreateCluster(types.ClusterCreateData{Name: "prod", ReleaseID: release.ID})
	require.NoError(t, err)

	group, err := mgr.CreateNodeGroup(cluster.ID, "rack-2")
	require.NoError(t, err)
	assert.False(t, group.IsDefault)

	nets, err := mgr.Store().ListNetworkGroupsByNodeGroup(group.ID)
	require.NoError(t, err)
	assert.Len(t, nets, 2)

	_, err = mgr.CreateNodeGroup(cluster.ID, "rack-2")
	assert.ErrorContains(t, err, `node group "rack-2" already exists`)

	groups, err := mgr.ListNodeGroups(cluster.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestCreateNode(t *testing.T) {
	mgr := newTestManager(t)
	release := testRelease()
	require.NoError(t, mgr.CreateRelease(release))
	cluster, err := mgr.CreateCluster(types.ClusterCreateData{Name: "prod", ReleaseID: release.ID})
	require.NoError(t, err)
	group, err := mgr.DefaultNodeGroup(cluster.ID)
	require.NoError(t, err)

	node := &types.Node{Hostname: "node-1", ClusterID: cluster.ID}
	require.NoError(t, mgr.CreateNode(node))
	assert.NotEmpty(t, node.ID)
	assert.Equal(t, types.NodeStatusDiscover, node.Status)
	assert.Equal(t, group.ID, node.GroupID)

	unallocated := &types.Node{Hostname: "node-2"}
	require.NoError(t, mgr.CreateNode(unallocated))
	assert.Empty(t, unallocated.GroupID)

	err = mgr.CreateNode(&types.Node{ClusterID: "missing"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	nodes, err := mgr.ListNodesByCluster(cluster.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestDeleteCluster(t *testing.T) {
	mgr := newTestManager(t)
	release := testRelease()
	require.NoError(t, mgr.CreateRelease(release))
	cluster, err := mgr.CreateCluster(types.ClusterCreateData{Name: "prod", ReleaseID: release.ID})
	require.NoError(t, err)

	group, err := mgr.DefaultNodeGroup(cluster.ID)
	require.NoError(t, err)
	nets, err := mgr.Store().ListNetworkGroupsByNodeGroup(group.ID)
	require.NoError(t, err)
	require.NoError(t, mgr.Store().PutVIP(&types.VIP{NetworkGroupID: nets[0].ID, Name: "vip", Address: "172.16.0.5"}))

	node := &types.Node{ClusterID: cluster.ID, Roles: []string{"controller"}}
	require.NoError(t, mgr.CreateNode(node))

	var hooked []string
	mgr.OnClusterDelete(func(clusterID string) error {
		hooked = append(hooked, clusterID)
		return nil
	})

	require.NoError(t, mgr.DeleteCluster(cluster.ID))
	assert.Equal(t, []string{cluster.ID}, hooked)

	_, err = mgr.GetCluster(cluster.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	groups, err := mgr.ListNodeGroups(cluster.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)

	vips, err := mgr.Store().ListVIPsByNetworkGroup(nets[0].ID)
	require.NoError(t, err)
	assert.Empty(t, vips)

	released, err := mgr.GetNode(node.ID)
	require.NoError(t, err)
	assert.Empty(t, released.ClusterID)
	assert.Empty(t, released.GroupID)
	assert.Empty(t, released.Roles)

	// The shared admin network survives
	admin, err := mgr.Store().ListNetworkGroupsByNodeGroup("")
	require.NoError(t, err)
	assert.Len(t, admin, 1)
}

func TestDeleteClusterHookFailure(t *testing.T) {
	mgr := newTestManager(t)
	release := testRelease()
	require.NoError(t, mgr.CreateRelease(release))
	cluster, err := mgr.CreateCluster(types.ClusterCreateData{Name: "prod", ReleaseID: release.ID})
	require.NoError(t, err)

	mgr.OnClusterDelete(func(string) error {
		return errors.New("boom")
	})

	err = mgr.DeleteCluster(cluster.ID)
	assert.ErrorContains(t, err, "boom")

	_, err = mgr.GetCluster(cluster.ID)
	assert.NoError(t, err)
}

func TestEventsRecorded(t *testing.T) {
	mgr := newTestManager(t)

	release := testRelease()
	require.NoError(t, mgr.CreateRelease(release))
	cluster, err := mgr.CreateCluster(types.ClusterCreateData{Name: "prod", ReleaseID: release.ID})
	require.NoError(t, err)
	require.NoError(t, mgr.DeleteCluster(cluster.ID))

	require.Eventually(t, func() bool {
		return len(mgr.Events(events.Filter{ClusterID: cluster.ID})) == 2
	}, time.Second, 5*time.Millisecond)

	recorded := mgr.Events(events.Filter{ClusterID: cluster.ID})
	assert.Equal(t, events.EventClusterCreated, recorded[0].Type)
	assert.Equal(t, events.EventClusterDeleted, recorded[1].Type)

	assert.Len(t, mgr.Events(events.Filter{Type: events.EventClusterDeleted}), 1)
}

func TestEventsWithoutBroker(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	mgr := NewWithStore(store, nil)
	assert.Empty(t, mgr.Events(events.Filter{}))
	require.NoError(t, mgr.Shutdown())
}
