// Package vip holds the transformations of cluster VIPs.
package vip

import (
	"fmt"

	"github.com/cuemby/clusterupgrade/pkg/transformations"
)

// Name is the transformation domain of VIPs
const Name = "vip"

// Data is the input and output of VIP transformers
type Data struct {
	// VIPs maps network group id -> VIP name -> VIP. A VIP is either a plain
	// address string or a tree with "ip_addr" and "vip_namespace" keys.
	VIPs map[string]map[string]interface{} `json:"vips"`
	// NetworkGroups maps network group id -> network group name
	NetworkGroups map[string]string `json:"network_groups"`
}

// DefaultConfig returns the default version -> transformer names mapping
func DefaultConfig() map[string][]string {
	return map[string][]string{
		"7.0": {"transform_vips"},
	}
}

func init() {
	transformations.Register(Name, "7.0", "transform_vips", TransformVIPs)
}

// NewManager builds the VIP manager
func NewManager(settings transformations.Settings) (*transformations.Manager, error) {
	return transformations.NewManager(transformations.Config{
		Name:     Name,
		Defaults: DefaultConfig(),
		Settings: settings,
	})
}

// NewLazy returns a VIP manager that is built on first use
func NewLazy(settings transformations.Settings) *transformations.Lazy {
	return transformations.NewLazy(func() (*transformations.Manager, error) {
		return NewManager(settings)
	})
}

// renameRules maps network group name -> old VIP name -> new VIP name
var renameRules = map[string]map[string]string{
	"management": {
		"haproxy": "management",
		"vrouter": "vrouter",
	},
	"public": {
		"haproxy": "public",
		"vrouter": "vrouter_pub",
	},
}

// namespaceRules maps new VIP name -> namespace
var namespaceRules = map[string]string{
	"vrouter":     "vrouter",
	"vrouter_pub": "vrouter",
	"public":      "haproxy",
	"management":  "haproxy",
}

// TransformVIPs renames the VIPs of management and public network groups to
// the 7.0 naming and drops VIPs without a rule:
//
//	management: haproxy -> management, vrouter -> vrouter
//	public:     haproxy -> public,     vrouter -> vrouter_pub
//
// Tree entries without a vip_namespace get one derived from the new name.
// The network group names are returned unchanged.
func TransformVIPs(data interface{}) (interface{}, error) {
	in, err := asData(data)
	if err != nil {
		return nil, err
	}

	renamed := make(map[string]map[string]interface{}, len(in.VIPs))
	for ngID, vips := range in.VIPs {
		ngName, ok := in.NetworkGroups[ngID]
		if !ok {
			return nil, fmt.Errorf("no name known for network group %s", ngID)
		}

		rules := renameRules[ngName]
		for vipName, vip := range vips {
			newName, ok := rules[vipName]
			if !ok {
				continue
			}

			if tree, isTree := vip.(map[string]interface{}); isTree {
				if _, set := tree["vip_namespace"]; !set {
					tree["vip_namespace"] = namespaceRules[newName]
				}
			}

			if renamed[ngID] == nil {
				renamed[ngID] = make(map[string]interface{})
			}
			renamed[ngID][newName] = vip
		}
	}

	return Data{VIPs: renamed, NetworkGroups: in.NetworkGroups}, nil
}

func asData(data interface{}) (Data, error) {
	switch d := data.(type) {
	case Data:
		return d, nil
	case *Data:
		if d == nil {
			return Data{}, fmt.Errorf("nil vip data")
		}
		return *d, nil
	default:
		return Data{}, fmt.Errorf("unexpected vip data %T", data)
	}
}

// Apply runs applier over vips and returns the transformed VIPs
func Apply(applier transformations.Applier, from, to string, vips map[string]map[string]interface{}, names map[string]string) (map[string]map[string]interface{}, error) {
	out, err := applier.Apply(from, to, Data{VIPs: vips, NetworkGroups: names})
	if err != nil {
		return nil, err
	}
	res, err := asData(out)
	if err != nil {
		return nil, err
	}
	return res.VIPs, nil
}
