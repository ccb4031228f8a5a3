package upgrade

import (
	"fmt"

	"github.com/cuemby/clusterupgrade/pkg/network"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/mitchellh/copystructure"
)

// Sections and keys never carried over from the orig cluster
const (
	sectionRepoSetup = "repo_setup"
	keyMetadata      = "metadata"
)

// Network keys owned by the seed cluster
var seedNetworkKeys = map[string]bool{
	"cluster_id": true,
	"id":         true,
	"meta":       true,
	"group_id":   true,
}

func deepCopy[T any](v T) (T, error) {
	var zero T
	copied, err := copystructure.Copy(v)
	if err != nil {
		return zero, fmt.Errorf("failed to copy %T: %w", v, err)
	}
	if copied == nil {
		return zero, nil
	}
	return copied.(T), nil
}

// MergeAttributes returns a copy of newAttrs where the value of every
// setting also present in oldAttrs is taken from oldAttrs. The layout,
// metadata and unmatched settings come from newAttrs; the repo_setup
// section is never carried over.
func MergeAttributes(oldAttrs, newAttrs types.ConfigTree) (types.ConfigTree, error) {
	merged, err := deepCopy(newAttrs)
	if err != nil {
		return nil, err
	}
	old, err := deepCopy(oldAttrs)
	if err != nil {
		return nil, err
	}

	for section, pairs := range merged {
		if section == sectionRepoSetup {
			continue
		}
		oldPairs, ok := old[section].(map[string]interface{})
		if !ok {
			continue
		}
		newPairs, ok := pairs.(map[string]interface{})
		if !ok {
			continue
		}
		for key, values := range newPairs {
			if key == keyMetadata {
				continue
			}
			oldValues, ok := oldPairs[key].(map[string]interface{})
			if !ok {
				continue
			}
			newValues, ok := values.(map[string]interface{})
			if !ok {
				continue
			}
			if value, ok := oldValues["value"]; ok {
				newValues["value"] = value
			}
		}
	}
	return merged, nil
}

// DictMerge returns a copy of a with b merged into it recursively. Values
// of b win unless both sides hold a tree.
func DictMerge(a, b types.ConfigTree) (types.ConfigTree, error) {
	merged, err := deepCopy(a)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		merged = types.ConfigTree{}
	}

	for k, v := range b {
		if sub, ok := merged[k].(map[string]interface{}); ok {
			if bsub, ok := v.(map[string]interface{}); ok {
				if merged[k], err = DictMerge(sub, bsub); err != nil {
					return nil, err
				}
				continue
			}
		}
		if merged[k], err = deepCopy(v); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

type netKey struct {
	name      string
	nodeGroup string
}

// MergeNets returns a copy of the seed network configuration carrying the
// settings of the orig networks. Networks are matched by name and node group
// name; groupNames maps the node group ids of both clusters to their names.
// Identity keys (id, group_id, cluster_id, meta) stay those of the seed.
func MergeNets(orig, seed *network.NetworkConfig, groupNames map[string]string) (*network.NetworkConfig, error) {
	key := func(net types.ConfigTree) netKey {
		name, _ := net["name"].(string)
		groupID, _ := net["group_id"].(string)
		return netKey{name: name, nodeGroup: groupNames[groupID]}
	}

	source := make(map[netKey]types.ConfigTree, len(orig.Networks))
	for _, net := range orig.Networks {
		source[key(net)] = net
	}

	merged, err := deepCopy(seed)
	if err != nil {
		return nil, err
	}

	for _, net := range merged.Networks {
		src, ok := source[key(net)]
		if !ok {
			continue
		}
		for k := range net {
			if seedNetworkKeys[k] {
				continue
			}
			value, ok := src[k]
			if !ok {
				continue
			}
			if net[k], err = deepCopy(value); err != nil {
				return nil, err
			}
		}
	}

	for k := range merged.NetworkingParameters {
		value, ok := orig.NetworkingParameters[k]
		if !ok {
			continue
		}
		if merged.NetworkingParameters[k], err = deepCopy(value); err != nil {
			return nil, err
		}
	}

	return merged, nil
}
