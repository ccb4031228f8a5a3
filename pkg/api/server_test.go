package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/events"
	"github.com/cuemby/clusterupgrade/pkg/manager"
	"github.com/cuemby/clusterupgrade/pkg/tasks"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/cuemby/clusterupgrade/pkg/upgrade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	objects *manager.Manager
	tasks   *tasks.Manager
	server  *Server
	orig    *types.Cluster
}

func testReleases() []*types.Release {
	editable := func(dns interface{}) types.ConfigTree {
		return types.ConfigTree{
			"common": map[string]interface{}{
				"debug": map[string]interface{}{"type": "checkbox", "value": false},
			},
			"external_dns": map[string]interface{}{
				"dns_list": map[string]interface{}{"type": "text", "value": dns},
			},
			"external_ntp": map[string]interface{}{
				"ntp_list": map[string]interface{}{"type": "text", "value": "0.pool.ntp.org"},
			},
			"provision": map[string]interface{}{
				"method": map[string]interface{}{"type": "radio", "value": "cobbler"},
			},
		}
	}

	return []*types.Release{
		{
			ID:                 "r60",
			Name:               "Juno on Ubuntu 12.04.4",
			EnvironmentVersion: "6.0",
			Roles:              []string{"controller", "compute"},
			Attributes:         types.ReleaseAttrs{Editable: editable("8.8.8.8"), Generated: types.ConfigTree{}},
			NetworksMetadata: []types.NetworkMeta{
				{Name: types.NetworkAdmin, CIDR: "10.20.0.0/24"},
				{Name: types.NetworkPublic, CIDR: "172.16.0.0/24", Gateway: "172.16.0.1"},
				{Name: types.NetworkManagement, CIDR: "192.168.0.0/24"},
			},
			NetworkRolesMetadata: []types.NetworkRole{
				{ID: "public/vip", DefaultMapping: types.NetworkPublic, VIPs: []types.NetworkRoleVIP{{Name: "haproxy"}}},
			},
		},
		{
			ID:                 "r90",
			Name:               "Mitaka on Ubuntu 14.04",
			EnvironmentVersion: "9.0",
			Roles:              []string{"controller", "compute", "cinder"},
			Attributes:         types.ReleaseAttrs{Editable: editable([]interface{}{"1.1.1.1"}), Generated: types.ConfigTree{}},
			NetworksMetadata: []types.NetworkMeta{
				{Name: types.NetworkAdmin, CIDR: "10.30.0.0/24"},
				{Name: types.NetworkPublic, CIDR: "172.16.100.0/24", Gateway: "172.16.100.1"},
				{Name: types.NetworkManagement, CIDR: "192.168.100.0/24"},
			},
			NetworkRolesMetadata: []types.NetworkRole{
				{ID: "public/vip", DefaultMapping: types.NetworkPublic, VIPs: []types.NetworkRoleVIP{{Name: "public"}}},
			},
		},
	}
}

func newAPIFixture(t *testing.T, readOnly bool) *apiFixture {
	t.Helper()

	objects, err := manager.NewManager(&manager.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = objects.Shutdown() })

	for _, release := range testReleases() {
		require.NoError(t, objects.CreateRelease(release))
	}
	orig, err := objects.CreateCluster(types.ClusterCreateData{Name: "prod", ReleaseID: "r60"})
	require.NoError(t, err)

	taskManager := tasks.NewManager(objects.Store(), objects.GetEventBroker(), nil)
	helper := upgrade.NewHelper(upgrade.Config{Objects: objects, Tasks: taskManager})

	return &apiFixture{
		objects: objects,
		tasks:   taskManager,
		server:  NewServer(Config{Objects: objects, Helper: helper, ReadOnly: readOnly}),
		orig:    orig,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func (f *apiFixture) clone(t *testing.T) *types.Cluster {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/clusters/"+f.orig.ID+"/upgrade/clone",
		upgrade.CloneRequest{Name: "prod-upgrade", ReleaseID: "r90"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	seed := decode[types.Cluster](t, w)
	return &seed
}

func TestCloneEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)

	seed := f.clone(t)
	assert.Equal(t, "prod-upgrade", seed.Name)
	assert.Equal(t, "r90", seed.ReleaseID)
	assert.NotEqual(t, f.orig.ID, seed.ID)

	w := f.do(t, http.MethodPost, "/api/v1/clusters/"+f.orig.ID+"/upgrade/clone",
		upgrade.CloneRequest{Name: "prod-upgrade-2", ReleaseID: "r90"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Message, "already involved in the upgrade routine")
}

func TestCloneEndpointErrors(t *testing.T) {
	f := newAPIFixture(t, false)
	clonePath := "/api/v1/clusters/" + f.orig.ID + "/upgrade/clone"

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "unknown cluster",
			path:       "/api/v1/clusters/missing/upgrade/clone",
			body:       upgrade.CloneRequest{Name: "x", ReleaseID: "r90"},
			wantStatus: http.StatusNotFound,
			wantMsg:    "Cluster with id missing not found",
		},
		{
			name:       "malformed body",
			path:       clonePath,
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid request body",
		},
		{
			name:       "missing name",
			path:       clonePath,
			body:       upgrade.CloneRequest{ReleaseID: "r90"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "'name' is a required property",
		},
		{
			name:       "name taken",
			path:       clonePath,
			body:       upgrade.CloneRequest{Name: "prod", ReleaseID: "r90"},
			wantStatus: http.StatusConflict,
			wantMsg:    "Environment with this name 'prod' already exists.",
		},
		{
			name:       "unknown release",
			path:       clonePath,
			body:       upgrade.CloneRequest{Name: "x", ReleaseID: "r100"},
			wantStatus: http.StatusNotFound,
			wantMsg:    "Release with id r100 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, decode[ErrorResponse](t, w).Message, tt.wantMsg)
		})
	}
}

func TestCopyVIPsEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)
	seed := f.clone(t)

	w := f.do(t, http.MethodPost, "/api/v1/clusters/"+f.orig.ID+"/upgrade/vips", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Given cluster is not seed cluster", decode[ErrorResponse](t, w).Message)

	w = f.do(t, http.MethodPost, "/api/v1/clusters/"+seed.ID+"/upgrade/vips", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAssignEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)
	seed := f.clone(t)
	assignPath := "/api/v1/clusters/" + seed.ID + "/upgrade/assign"

	w := f.do(t, http.MethodPost, "/api/v1/nodes", types.Node{
		Hostname:  "node-1",
		ClusterID: f.orig.ID,
		Status:    types.NodeStatusReady,
		Roles:     []string{"controller"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[types.Node](t, w)

	w = f.do(t, http.MethodPost, "/api/v1/nodes", types.Node{
		Hostname:  "node-2",
		ClusterID: f.orig.ID,
		Status:    types.NodeStatusReady,
		Roles:     []string{"compute"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	second := decode[types.Node](t, w)

	// Reprovisioning answers with the submitted task
	w = f.do(t, http.MethodPost, assignPath, map[string]interface{}{"node_id": first.ID})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	task := decode[types.Task](t, w)
	assert.Equal(t, []string{first.ID}, task.NodeIDs)
	f.tasks.Wait()

	w = f.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.TaskStatusReady, decode[types.Task](t, w).Status)

	// Without reprovisioning the node just moves
	w = f.do(t, http.MethodPost, assignPath, map[string]interface{}{"node_id": second.ID, "reprovision": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/nodes?cluster_id="+seed.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*types.Node](t, w), 2)

	w = f.do(t, http.MethodPost, assignPath, map[string]interface{}{"node_id": second.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Message, "is already assigned to cluster")
}

func TestCloneReleaseEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/v1/clusters/"+f.orig.ID+"/upgrade/clone_release/r90", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	release := decode[types.Release](t, w)
	assert.Equal(t, "Mitaka on Ubuntu 14.04 Upgrade (r60)", release.Name)
	assert.Equal(t, "9.0", release.EnvironmentVersion)

	w = f.do(t, http.MethodPost, "/api/v1/clusters/"+f.orig.ID+"/upgrade/clone_release/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeploymentInfoEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/v1/clusters/"+f.orig.ID+"/upgrade/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[map[string]interface{}](t, w))

	seed := f.clone(t)
	w = f.do(t, http.MethodGet, "/api/v1/clusters/"+seed.ID+"/upgrade/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"upgrade": map[string]interface{}{
			"relation_info": map[string]interface{}{
				"orig_cluster_id": f.orig.ID,
				"seed_cluster_id": seed.ID,
			},
		},
	}, decode[map[string]interface{}](t, w))

	// Deleting the seed drops the relation
	w = f.do(t, http.MethodDelete, "/api/v1/clusters/"+seed.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/clusters/"+f.orig.ID+"/upgrade/info", nil)
	assert.Empty(t, decode[map[string]interface{}](t, w))
}

func TestClusterEndpoints(t *testing.T) {
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/v1/clusters", types.ClusterCreateData{Name: "staging", ReleaseID: "r90"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cluster := decode[types.Cluster](t, w)
	assert.Equal(t, "ha_compact", cluster.Mode)

	w = f.do(t, http.MethodPost, "/api/v1/clusters", types.ClusterCreateData{Name: "staging", ReleaseID: "r90"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/clusters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*types.Cluster](t, w), 2)

	w = f.do(t, http.MethodPost, "/api/v1/clusters/"+cluster.ID+"/node_groups", NodeGroupRequest{Name: "rack-2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "rack-2", decode[types.NodeGroup](t, w).Name)

	w = f.do(t, http.MethodGet, "/api/v1/clusters/"+cluster.ID+"/node_groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*types.NodeGroup](t, w), 2)

	w = f.do(t, http.MethodGet, "/api/v1/clusters/"+cluster.ID+"/network_configuration", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"networking_parameters"`)

	w = f.do(t, http.MethodDelete, "/api/v1/clusters/"+cluster.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/clusters/"+cluster.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReleaseEndpoints(t *testing.T) {
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/v1/releases", types.Release{Name: "Newton", EnvironmentVersion: "10.0"})
	require.Equal(t, http.StatusCreated, w.Code)
	release := decode[types.Release](t, w)
	assert.NotEmpty(t, release.ID)
	assert.Equal(t, types.ReleaseStateAvailable, release.State)

	w = f.do(t, http.MethodPost, "/api/v1/releases", types.Release{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/releases/"+release.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Newton", decode[types.Release](t, w).Name)

	w = f.do(t, http.MethodGet, "/api/v1/releases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*types.Release](t, w), 3)
}

func TestRouting(t *testing.T) {
	f := newAPIFixture(t, false)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"unknown path", http.MethodGet, "/api/v1/nothing", http.StatusNotFound},
		{"unknown collection method", http.MethodPut, "/api/v1/clusters", http.StatusMethodNotAllowed},
		{"unknown item method", http.MethodPatch, "/api/v1/clusters/" + f.orig.ID, http.StatusMethodNotAllowed},
		{"GET on an upgrade action", http.MethodGet, "/api/v1/clusters/" + f.orig.ID + "/upgrade/clone", http.StatusMethodNotAllowed},
		{"DELETE on releases", http.MethodDelete, "/api/v1/releases", http.StatusMethodNotAllowed},
		{"POST on events", http.MethodPost, "/api/v1/events", http.StatusMethodNotAllowed},
		{"missing task", http.MethodGet, "/api/v1/tasks/missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestEventsEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)
	seed := f.clone(t)

	path := "/api/v1/events?type=cluster.cloned&cluster_id=" + f.orig.ID
	require.Eventually(t, func() bool {
		return strings.Contains(f.do(t, http.MethodGet, path, nil).Body.String(), seed.ID)
	}, time.Second, 5*time.Millisecond)

	w := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cloned := decode[[]*events.Event](t, w)
	require.Len(t, cloned, 1)
	assert.Equal(t, seed.ID, cloned[0].Metadata["seed_cluster_id"])

	w = f.do(t, http.MethodGet, "/api/v1/events?cluster_id=missing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]*events.Event](t, w))
}

func TestReadOnlyServer(t *testing.T) {
	f := newAPIFixture(t, true)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"list clusters", http.MethodGet, "/api/v1/clusters", http.StatusOK},
		{"deployment info", http.MethodGet, "/api/v1/clusters/" + f.orig.ID + "/upgrade/info", http.StatusOK},
		{"clone", http.MethodPost, "/api/v1/clusters/" + f.orig.ID + "/upgrade/clone", http.StatusForbidden},
		{"delete cluster", http.MethodDelete, "/api/v1/clusters/" + f.orig.ID, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.True(t, strings.HasPrefix(decode[ErrorResponse](t, w).Message, "server is read-only"))
			}
		})
	}

	_, err := f.objects.GetCluster(f.orig.ID)
	assert.NoError(t, err)
}

func TestMaxBodyBytes(t *testing.T) {
	f := newAPIFixture(t, false)
	f.server.maxBodyBytes = 16

	w := f.do(t, http.MethodPost, "/api/v1/clusters", types.ClusterCreateData{Name: "a-rather-long-cluster-name", ReleaseID: "r90"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
