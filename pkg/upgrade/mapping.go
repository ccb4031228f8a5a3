package upgrade

import (
	"github.com/cuemby/clusterupgrade/pkg/network"
	"github.com/cuemby/clusterupgrade/pkg/types"
)

// NetworkGroupIDMapping maps the network group ids of the orig cluster to
// the ids of the seed network groups with the same name and node group
// name. The admin network group of orig always maps to the one of seed.
func NetworkGroupIDMapping(orig, seed []network.Group, origAdmin, seedAdmin *types.NetworkGroup) (map[string]string, error) {
	seedIDs := make(map[netKey]string, len(seed))
	for _, g := range seed {
		seedIDs[netKey{name: g.Name, nodeGroup: g.NodeGroupName}] = g.ID
	}

	mapping := make(map[string]string, len(orig)+1)
	for _, g := range orig {
		id, ok := seedIDs[netKey{name: g.Name, nodeGroup: g.NodeGroupName}]
		if !ok {
			return nil, &UnmatchedNetworkGroupError{
				NetworkGroupID: g.ID,
				Name:           g.Name,
				NodeGroup:      g.NodeGroupName,
			}
		}
		mapping[g.ID] = id
	}
	mapping[origAdmin.ID] = seedAdmin.ID

	return mapping, nil
}

// ReassociateVIPs moves VIPs keyed by orig network group id to the mapped
// seed network group ids
func ReassociateVIPs(vips map[string]map[string]interface{}, mapping map[string]string) (map[string]map[string]interface{}, error) {
	out := make(map[string]map[string]interface{}, len(vips))
	for ngID, named := range vips {
		seedID, ok := mapping[ngID]
		if !ok {
			return nil, &UnmatchedNetworkGroupError{NetworkGroupID: ngID}
		}
		out[seedID] = named
	}
	return out, nil
}
