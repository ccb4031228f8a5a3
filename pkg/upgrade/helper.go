package upgrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/events"
	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/manager"
	"github.com/cuemby/clusterupgrade/pkg/metrics"
	"github.com/cuemby/clusterupgrade/pkg/storage"
	"github.com/cuemby/clusterupgrade/pkg/tasks"
	"github.com/cuemby/clusterupgrade/pkg/transformations"
	clustertf "github.com/cuemby/clusterupgrade/pkg/transformations/cluster"
	viptf "github.com/cuemby/clusterupgrade/pkg/transformations/vip"
	volumestf "github.com/cuemby/clusterupgrade/pkg/transformations/volumes"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/rs/zerolog"
)

// CloneRequest holds the parameters of a cluster clone
type CloneRequest struct {
	Name      string `json:"name" yaml:"name"`
	ReleaseID string `json:"release_id" yaml:"release_id"`
}

// AssignRequest holds the parameters of a node reassignment. Reprovision
// defaults to true.
type AssignRequest struct {
	NodeID      string   `json:"node_id" yaml:"node_id"`
	Reprovision *bool    `json:"reprovision,omitempty" yaml:"reprovision,omitempty"`
	Roles       []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Config holds configuration for creating a Helper
type Config struct {
	Objects *manager.Manager
	// Tasks runs provisioning; a task manager with the simulated
	// provisioner is used when nil
	Tasks *tasks.Manager
	// Settings overrides the default transformations per domain
	Settings transformations.Settings
}

// Helper orchestrates the upgrade of a cluster into a seed cluster
type Helper struct {
	objects *manager.Manager
	store   storage.Store
	tasks   *tasks.Manager

	clusterTransforms *transformations.Lazy
	vipTransforms     *transformations.Lazy
	volumeTransforms  *transformations.Lazy

	logger zerolog.Logger
}

// NewHelper creates an upgrade helper and registers its cluster delete hook
// with the object manager
func NewHelper(cfg Config) *Helper {
	taskManager := cfg.Tasks
	if taskManager == nil {
		taskManager = tasks.NewManager(cfg.Objects.Store(), cfg.Objects.GetEventBroker(), nil)
	}

	h := &Helper{
		objects:           cfg.Objects,
		store:             cfg.Objects.Store(),
		tasks:             taskManager,
		clusterTransforms: clustertf.NewLazy(cfg.Settings),
		vipTransforms:     viptf.NewLazy(cfg.Settings),
		volumeTransforms:  volumestf.NewLazy(cfg.Settings),
		logger:            log.WithComponent("upgrade"),
	}
	cfg.Objects.OnClusterDelete(h.OnClusterDelete)
	return h
}

// Transformations builds the transformation managers of every domain,
// failing on the first domain whose configuration cannot be resolved
func (h *Helper) Transformations() ([]*transformations.Manager, error) {
	var managers []*transformations.Manager
	for _, lazy := range []*transformations.Lazy{h.clusterTransforms, h.vipTransforms, h.volumeTransforms} {
		m, err := lazy.Manager()
		if err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}
	return managers, nil
}

// Clone

// CloneCluster creates a seed cluster on the release of req from orig:
// the seed gets the orig attributes carried forward to its release, the
// orig node groups and network settings, an upgrade relation with orig and
// image based provisioning.
//
// The steps are not transactional. When a step fails the seed cluster is
// left in place and has to be deleted before retrying.
func (h *Helper) CloneCluster(orig *types.Cluster, req CloneRequest) (*types.Cluster, error) {
	timer := metrics.NewTimer()
	seed, err := h.cloneCluster(orig, req)
	metrics.RecordOperation("clone", timer, err)
	return seed, err
}

func (h *Helper) cloneCluster(orig *types.Cluster, req CloneRequest) (*types.Cluster, error) {
	if _, err := h.store.GetRelation(orig.ID); err == nil {
		return nil, &DuplicateRelationError{OrigClusterID: orig.ID}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	seed, err := h.CreateClusterClone(orig, req)
	if err != nil {
		return nil, err
	}

	logger := log.WithClusterID(orig.ID).With().Str("seed_cluster_id", seed.ID).Logger()

	steps := []struct {
		name string
		run  func(orig, seed *types.Cluster) error
	}{
		{"copy attributes", h.CopyAttributes},
		{"copy node groups", h.CopyNodeGroups},
		{"copy network config", h.CopyNetworkConfig},
		{"create relation", h.createRelation},
		{"change env settings", func(_, seed *types.Cluster) error { return h.ChangeEnvSettings(seed) }},
	}
	for _, step := range steps {
		if err := step.run(orig, seed); err != nil {
			logger.Error().Err(err).Str("step", step.name).Msg("Cluster clone failed, seed cluster must be deleted manually")
			return nil, fmt.Errorf("failed to %s: %w", step.name, err)
		}
		logger.Debug().Str("step", step.name).Msg("Clone step done")
	}

	logger.Info().Str("seed_name", seed.Name).Msg("Cluster cloned")
	h.objects.PublishEvent(events.NewEvent(events.EventClusterCloned, "cluster cloned", map[string]string{
		"orig_cluster_id": orig.ID,
		"seed_cluster_id": seed.ID,
	}))
	return seed, nil
}

// CreateClusterClone creates the seed cluster record with the creation
// parameters of orig and the name and release of req
func (h *Helper) CreateClusterClone(orig *types.Cluster, req CloneRequest) (*types.Cluster, error) {
	data := orig.CreateData()
	data.Name = req.Name
	data.ReleaseID = req.ReleaseID
	return h.objects.CreateCluster(data)
}

// CopyAttributes carries the editable and generated attributes of orig
// forward to the environment version of seed and merges them onto the seed
// defaults. Editable settings keep the seed layout with the orig values.
func (h *Helper) CopyAttributes(orig, seed *types.Cluster) error {
	from, to, err := h.environmentVersions(orig, seed)
	if err != nil {
		return err
	}

	out, err := h.clusterTransforms.Apply(from, to, types.ConfigTree{
		"editable":  orig.EditableAttrs,
		"generated": orig.GeneratedAttrs,
	})
	if err != nil {
		return err
	}
	attrs, ok := out.(types.ConfigTree)
	if !ok {
		return fmt.Errorf("unexpected attributes %T", out)
	}
	editable, _ := attrs["editable"].(map[string]interface{})
	generated, _ := attrs["generated"].(map[string]interface{})

	if seed.GeneratedAttrs, err = DictMerge(seed.GeneratedAttrs, generated); err != nil {
		return err
	}
	if seed.EditableAttrs, err = MergeAttributes(editable, seed.EditableAttrs); err != nil {
		return err
	}
	return h.objects.UpdateCluster(seed)
}

// CopyNodeGroups creates the non-default node groups of orig in seed
func (h *Helper) CopyNodeGroups(orig, seed *types.Cluster) error {
	groups, err := h.objects.ListNodeGroups(orig.ID)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if group.IsDefault || group.Name == types.DefaultNodeGroupName {
			continue
		}
		if _, err := h.objects.CreateNodeGroup(seed.ID, group.Name); err != nil {
			return err
		}
	}
	return nil
}

// CopyNetworkConfig applies the network settings of orig to the networks
// of seed
func (h *Helper) CopyNetworkConfig(orig, seed *types.Cluster) error {
	origNM := h.objects.NetworkManager(orig)
	seedNM := h.objects.NetworkManager(seed)

	origCfg, err := origNM.SerializeNetworkConfig()
	if err != nil {
		return err
	}
	seedCfg, err := seedNM.SerializeNetworkConfig()
	if err != nil {
		return err
	}

	groupNames := map[string]string{"": ""}
	for _, c := range []*types.Cluster{orig, seed} {
		groups, err := h.objects.ListNodeGroups(c.ID)
		if err != nil {
			return err
		}
		for _, g := range groups {
			groupNames[g.ID] = g.Name
		}
	}

	merged, err := MergeNets(origCfg, seedCfg, groupNames)
	if err != nil {
		return err
	}
	return seedNM.UpdateNetworkConfig(merged)
}

func (h *Helper) createRelation(orig, seed *types.Cluster) error {
	err := h.store.CreateRelation(&types.UpgradeRelation{
		OrigClusterID: orig.ID,
		SeedClusterID: seed.ID,
		CreatedAt:     time.Now(),
	})
	if errors.Is(err, storage.ErrDuplicateRelation) {
		return &DuplicateRelationError{OrigClusterID: orig.ID}
	}
	return err
}

// ChangeEnvSettings switches seed to image based provisioning
func (h *Helper) ChangeEnvSettings(seed *types.Cluster) error {
	method, err := transformations.Subtree(seed.EditableAttrs, "provision", "method")
	if err != nil {
		return err
	}
	method["value"] = "image"
	return h.objects.UpdateCluster(seed)
}

// VIPs

// CopyVIPs moves the public and management VIPs of orig to the matching
// network groups of seed, renamed for the seed environment version, and
// allocates the VIPs seed still lacks
func (h *Helper) CopyVIPs(orig, seed *types.Cluster) error {
	timer := metrics.NewTimer()
	err := h.copyVIPs(orig, seed)
	metrics.RecordOperation("copy_vips", timer, err)
	return err
}

func (h *Helper) copyVIPs(orig, seed *types.Cluster) error {
	origNM := h.objects.NetworkManager(orig)
	seedNM := h.objects.NetworkManager(seed)

	vips, err := origNM.GetAssignedVIPs(types.NetworkPublic, types.NetworkManagement)
	if err != nil {
		return err
	}
	mapping, err := h.GetNetworkGroupIDMapping(orig, seed)
	if err != nil {
		return err
	}
	vips, err = ReassociateVIPs(vips, mapping)
	if err != nil {
		return err
	}

	seedGroups, err := seedNM.NetworkGroups()
	if err != nil {
		return err
	}
	names := make(map[string]string, len(seedGroups))
	for _, g := range seedGroups {
		names[g.ID] = g.Name
	}

	from, to, err := h.environmentVersions(orig, seed)
	if err != nil {
		return err
	}
	vips, err = viptf.Apply(h.vipTransforms, from, to, vips, names)
	if err != nil {
		return err
	}

	if err := seedNM.AssignGivenVIPs(vips); err != nil {
		return err
	}
	if err := seedNM.AssignVIPsAuto(); err != nil {
		return err
	}

	logger := log.WithClusterID(seed.ID)
	logger.Info().Str("orig_cluster_id", orig.ID).Msg("VIPs copied")
	h.objects.PublishEvent(events.NewEvent(events.EventVIPsCopied, "vips copied", map[string]string{
		"orig_cluster_id": orig.ID,
		"seed_cluster_id": seed.ID,
	}))
	return nil
}

// GetNetworkGroupIDMapping maps the network group ids of orig to those of
// seed
func (h *Helper) GetNetworkGroupIDMapping(orig, seed *types.Cluster) (map[string]string, error) {
	origNM := h.objects.NetworkManager(orig)
	seedNM := h.objects.NetworkManager(seed)

	origGroups, err := origNM.NetworkGroups()
	if err != nil {
		return nil, err
	}
	seedGroups, err := seedNM.NetworkGroups()
	if err != nil {
		return nil, err
	}
	origAdmin, err := origNM.AdminNetworkGroup()
	if err != nil {
		return nil, err
	}
	seedAdmin, err := seedNM.AdminNetworkGroup()
	if err != nil {
		return nil, err
	}

	return NetworkGroupIDMapping(origGroups, seedGroups, origAdmin, seedAdmin)
}

// Nodes

// ReassignNode moves a node to seed. Unless req disables reprovisioning,
// the node gets its roles as pending roles and a provisioning task is
// submitted; the task is returned without waiting for it.
func (h *Helper) ReassignNode(ctx context.Context, seed *types.Cluster, req AssignRequest) (*types.Task, error) {
	timer := metrics.NewTimer()
	task, err := h.reassignNode(ctx, seed, req)
	metrics.RecordOperation("reassign", timer, err)
	return task, err
}

func (h *Helper) reassignNode(ctx context.Context, seed *types.Cluster, req AssignRequest) (*types.Task, error) {
	node, err := h.ValidateReassign(seed, req)
	if err != nil {
		return nil, err
	}

	reprovision := req.Reprovision == nil || *req.Reprovision
	roles, pendingRoles := GetNodeRoles(reprovision, node.Roles, req.Roles)
	if err := h.AssignNodeToCluster(node, seed, roles, pendingRoles); err != nil {
		return nil, err
	}
	if !reprovision {
		return nil, nil
	}

	task, err := h.tasks.SubmitProvisioning(ctx, seed.ID, []*types.Node{node})
	if err != nil {
		return nil, badRequest("%s", err.Error())
	}
	return task, nil
}

// AssignNodeToCluster moves node from its cluster to seed with the given
// roles. The volumes of the node are carried forward to the seed
// environment version and its addresses and interface assignments are
// moved to the matching seed network groups.
func (h *Helper) AssignNodeToCluster(node *types.Node, seed *types.Cluster, roles, pendingRoles []string) error {
	orig, err := h.objects.GetCluster(node.ClusterID)
	if err != nil {
		return fmt.Errorf("cluster of node %s: %w", node.ID, err)
	}
	from, to, err := h.environmentVersions(orig, seed)
	if err != nil {
		return err
	}

	if len(node.Volumes) > 0 {
		out, err := h.volumeTransforms.Apply(from, to, node.Volumes)
		if err != nil {
			return fmt.Errorf("failed to transform volumes of node %s: %w", node.ID, err)
		}
		volumes, ok := out.([]interface{})
		if !ok {
			return fmt.Errorf("unexpected volumes %T", out)
		}
		node.Volumes = volumes
	}

	mapping, err := h.GetNetworkGroupIDMapping(orig, seed)
	if err != nil {
		return err
	}
	group, err := h.targetNodeGroup(node, seed)
	if err != nil {
		return err
	}

	node.ClusterID = seed.ID
	node.GroupID = group.ID
	node.Roles = roles
	node.PendingRoles = pendingRoles
	node.PendingAddition = len(pendingRoles) > 0

	nm := h.objects.NetworkManager(orig)
	nm.SetIPAddrNetworkGroupIDs(node, mapping)
	if seed.NetworkTemplate == nil {
		nm.SetNICAssignmentNetworkGroupIDs(node, mapping)
		nm.SetBondAssignmentNetworkGroupIDs(node, mapping)
	}

	if err := h.objects.UpdateNode(node); err != nil {
		return fmt.Errorf("failed to update node %s: %w", node.ID, err)
	}
	seed.AddPendingChange(types.ChangeInterfaces, node.ID)
	if err := h.objects.UpdateCluster(seed); err != nil {
		return err
	}

	logger := log.WithNodeID(node.ID)
	logger.Info().
		Str("orig_cluster_id", orig.ID).
		Str("seed_cluster_id", seed.ID).
		Strs("roles", roles).
		Strs("pending_roles", pendingRoles).
		Msg("Node assigned to seed cluster")
	h.objects.PublishEvent(events.NewEvent(events.EventNodeReassigned, "node reassigned", map[string]string{
		"node_id":         node.ID,
		"orig_cluster_id": orig.ID,
		"seed_cluster_id": seed.ID,
	}))
	return nil
}

// targetNodeGroup returns the seed node group named like the node's
// current one, or the seed default node group
func (h *Helper) targetNodeGroup(node *types.Node, seed *types.Cluster) (*types.NodeGroup, error) {
	var current string
	if node.GroupID != "" {
		if g, err := h.store.GetNodeGroup(node.GroupID); err == nil {
			current = g.Name
		}
	}

	groups, err := h.objects.ListNodeGroups(seed.ID)
	if err != nil {
		return nil, err
	}
	var fallback *types.NodeGroup
	for _, g := range groups {
		if current != "" && g.Name == current {
			return g, nil
		}
		if g.IsDefault {
			fallback = g
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("default node group of cluster %s: %w", seed.ID, storage.ErrNotFound)
	}
	return fallback, nil
}

// Releases

// CreateUpgradeRelease creates a copy of the base release whose network
// roles keep the network mapping of the orig cluster release
func (h *Helper) CreateUpgradeRelease(orig *types.Cluster, baseReleaseID string) (*types.Release, error) {
	timer := metrics.NewTimer()
	release, err := h.createUpgradeRelease(orig, baseReleaseID)
	metrics.RecordOperation("clone_release", timer, err)
	return release, err
}

func (h *Helper) createUpgradeRelease(orig *types.Cluster, baseReleaseID string) (*types.Release, error) {
	base, err := h.objects.GetRelease(baseReleaseID)
	if err != nil {
		return nil, err
	}
	origRelease, err := h.objects.GetRelease(orig.ReleaseID)
	if err != nil {
		return nil, err
	}

	release := &types.Release{
		Name:               fmt.Sprintf("%s Upgrade (%s)", base.Name, origRelease.ID),
		Version:            base.Version,
		OperatingSystem:    base.OperatingSystem,
		EnvironmentVersion: base.EnvironmentVersion,
		Roles:              append([]string{}, base.Roles...),
		NetworksMetadata:   append([]types.NetworkMeta{}, base.NetworksMetadata...),
	}
	if release.Attributes.Editable, err = deepCopy(base.Attributes.Editable); err != nil {
		return nil, err
	}
	if release.Attributes.Generated, err = deepCopy(base.Attributes.Generated); err != nil {
		return nil, err
	}
	roles, err := deepCopy(base.NetworkRolesMetadata)
	if err != nil {
		return nil, err
	}
	release.NetworkRolesMetadata = MergeNetworkRoles(roles, origRelease.NetworkRolesMetadata)

	if err := h.objects.CreateRelease(release); err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("release_id", release.ID).
		Str("base_release_id", base.ID).
		Str("orig_release_id", origRelease.ID).
		Msg("Upgrade release created")
	h.objects.PublishEvent(events.NewEvent(events.EventReleaseCloned, "release cloned", map[string]string{
		"release_id":      release.ID,
		"base_release_id": base.ID,
	}))
	return release, nil
}

// MergeNetworkRoles sets the default mapping of every base network role to
// the mapping of the orig role with the same id
func MergeNetworkRoles(base, orig []types.NetworkRole) []types.NetworkRole {
	mappings := make(map[string]string, len(orig))
	for _, role := range orig {
		mappings[role.ID] = role.DefaultMapping
	}
	for i := range base {
		if mapping, ok := mappings[base[i].ID]; ok {
			base[i].DefaultMapping = mapping
		}
	}
	return base
}

// Relations

// DeploymentInfo returns the upgrade section of the deployment data of a
// cluster. It is empty when the cluster takes part in no upgrade.
func (h *Helper) DeploymentInfo(clusterID string) (map[string]interface{}, error) {
	relation, err := h.store.GetRelation(clusterID)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"upgrade": map[string]interface{}{
			"relation_info": map[string]interface{}{
				"orig_cluster_id": relation.OrigClusterID,
				"seed_cluster_id": relation.SeedClusterID,
			},
		},
	}, nil
}

// OnClusterDelete removes the upgrade relation a deleted cluster takes part
// in
func (h *Helper) OnClusterDelete(clusterID string) error {
	relation, err := h.store.GetRelation(clusterID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.store.DeleteRelation(clusterID); err != nil {
		return err
	}

	logger := log.WithClusterID(clusterID)
	logger.Info().
		Str("orig_cluster_id", relation.OrigClusterID).
		Str("seed_cluster_id", relation.SeedClusterID).
		Msg("Upgrade relation deleted")
	h.objects.PublishEvent(events.NewEvent(events.EventRelationDeleted, "upgrade relation deleted", map[string]string{
		"orig_cluster_id": relation.OrigClusterID,
		"seed_cluster_id": relation.SeedClusterID,
	}))
	return nil
}

func (h *Helper) environmentVersions(orig, seed *types.Cluster) (string, string, error) {
	origRelease, err := h.objects.GetRelease(orig.ReleaseID)
	if err != nil {
		return "", "", fmt.Errorf("release of cluster %s: %w", orig.ID, err)
	}
	seedRelease, err := h.objects.GetRelease(seed.ReleaseID)
	if err != nil {
		return "", "", fmt.Errorf("release of cluster %s: %w", seed.ID, err)
	}
	return origRelease.EnvironmentVersion, seedRelease.EnvironmentVersion, nil
}
