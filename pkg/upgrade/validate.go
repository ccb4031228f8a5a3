package upgrade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/clusterupgrade/pkg/storage"
	"github.com/cuemby/clusterupgrade/pkg/transformations"
	"github.com/cuemby/clusterupgrade/pkg/types"
)

// ValidateClone checks that orig can be cloned into a new cluster named
// req.Name on release req.ReleaseID
func (h *Helper) ValidateClone(orig *types.Cluster, req CloneRequest) error {
	if req.Name == "" {
		return badRequest("'name' is a required property")
	}
	if req.ReleaseID == "" {
		return badRequest("'release_id' is a required property")
	}

	if _, err := h.store.GetRelation(orig.ID); err == nil {
		return badRequest("Upgrade is not possible because of the original cluster (%s) is already involved in the upgrade routine.", orig.ID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if _, err := h.store.GetClusterByName(req.Name); err == nil {
		return conflict("Environment with this name '%s' already exists.", req.Name)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	release, err := h.store.GetRelease(req.ReleaseID)
	if errors.Is(err, storage.ErrNotFound) {
		return notFound("Release with id %s not found", req.ReleaseID)
	}
	if err != nil {
		return err
	}
	origRelease, err := h.store.GetRelease(orig.ReleaseID)
	if err != nil {
		return err
	}

	return validateReleaseUpgrade(origRelease, release)
}

func validateReleaseUpgrade(orig, target *types.Release) error {
	if target.State == types.ReleaseStateUnavailable {
		return badRequest("Upgrade to the given release (%s) is not possible because this release is deprecated and cannot be installed.", target.ID)
	}

	origVersion, err := transformations.ParseVersion(orig.EnvironmentVersion)
	if err != nil {
		return fmt.Errorf("release %s: %w", orig.ID, err)
	}
	targetVersion, err := transformations.ParseVersion(target.EnvironmentVersion)
	if err != nil {
		return badRequest("Release %s has an invalid environment version %q", target.ID, target.EnvironmentVersion)
	}
	if targetVersion.LessThan(origVersion) {
		return badRequest("Upgrade to the given release (%s) is not possible because this release is older than the release of the cluster (%s < %s).",
			target.ID, target.EnvironmentVersion, orig.EnvironmentVersion)
	}
	return nil
}

// ValidateReassign checks that the node of req can be moved to seed and
// returns it
func (h *Helper) ValidateReassign(seed *types.Cluster, req AssignRequest) (*types.Node, error) {
	if req.NodeID == "" {
		return nil, badRequest("'node_id' is a required property")
	}

	node, err := h.store.GetNode(req.NodeID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound("Node with id %s not found", req.NodeID)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case node.Status == types.NodeStatusError && node.ErrorType != types.NodeErrorDeploy:
		return nil, badRequest("Node should be in error state only with deploy error type")
	case node.Status != types.NodeStatusReady && node.Status != types.NodeStatusError:
		return nil, badRequest("Node should be in one of statuses: %s, %s", types.NodeStatusReady, types.NodeStatusError)
	}

	if node.ClusterID == seed.ID {
		return nil, badRequest("Node %s is already assigned to cluster %s", node.ID, seed.ID)
	}
	if node.ClusterID == "" {
		return nil, badRequest("Node %s is not assigned to any cluster", node.ID)
	}

	if err := h.validateRoles(seed, req.Roles); err != nil {
		return nil, err
	}
	return node, nil
}

func (h *Helper) validateRoles(seed *types.Cluster, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	release, err := h.store.GetRelease(seed.ReleaseID)
	if err != nil {
		return err
	}

	available := make(map[string]bool, len(release.Roles))
	for _, role := range release.Roles {
		available[role] = true
	}
	var unknown []string
	for _, role := range roles {
		if !available[role] {
			unknown = append(unknown, role)
		}
	}
	if len(unknown) > 0 {
		return badRequest("Roles %s are not available in the release of cluster %s", strings.Join(unknown, ", "), seed.ID)
	}
	return nil
}

// ValidateCopyVIPs checks that seed is the seed side of an upgrade relation
// and returns the relation
func (h *Helper) ValidateCopyVIPs(seed *types.Cluster) (*types.UpgradeRelation, error) {
	relation, err := h.store.GetRelation(seed.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, badRequest("Relation for given cluster does not exist")
	}
	if err != nil {
		return nil, err
	}
	if relation.SeedClusterID != seed.ID {
		return nil, badRequest("Given cluster is not seed cluster")
	}
	return relation, nil
}
