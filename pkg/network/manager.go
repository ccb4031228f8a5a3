package network

import (
	"bytes"
	"fmt"
	"net"
	"sort"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/storage"
	"github.com/cuemby/clusterupgrade/pkg/types"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
)

// NetworkConfig is the serialized network configuration of a cluster
type NetworkConfig struct {
	Networks             []types.ConfigTree `json:"networks"`
	NetworkingParameters types.ConfigTree   `json:"networking_parameters"`
	VIPs                 map[string]string  `json:"vips,omitempty"`
}

// Group is a network group together with the name of its node group. The
// admin network has an empty node group name.
type Group struct {
	*types.NetworkGroup
	NodeGroupName string
}

// Manager manages the network groups and VIPs of one cluster
type Manager struct {
	store   storage.Store
	cluster *types.Cluster
	logger  zerolog.Logger
}

// NewManager creates a network manager for cluster
func NewManager(store storage.Store, cluster *types.Cluster) *Manager {
	return &Manager{
		store:   store,
		cluster: cluster,
		logger:  log.WithClusterID(cluster.ID).With().Str("component", "network").Logger(),
	}
}

// NetworkGroups returns the network groups of every node group of the cluster
func (m *Manager) NetworkGroups() ([]Group, error) {
	nodeGroups, err := m.store.ListNodeGroupsByCluster(m.cluster.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node groups: %w", err)
	}
	sort.Slice(nodeGroups, func(i, j int) bool { return nodeGroups[i].Name < nodeGroups[j].Name })

	var groups []Group
	for _, ng := range nodeGroups {
		nets, err := m.store.ListNetworkGroupsByNodeGroup(ng.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list network groups of node group %s: %w", ng.ID, err)
		}
		sort.Slice(nets, func(i, j int) bool { return nets[i].Name < nets[j].Name })
		for _, n := range nets {
			groups = append(groups, Group{NetworkGroup: n, NodeGroupName: ng.Name})
		}
	}
	return groups, nil
}

// AdminNetworkGroup returns the shared admin network group
func (m *Manager) AdminNetworkGroup() (*types.NetworkGroup, error) {
	nets, err := m.store.ListNetworkGroupsByNodeGroup("")
	if err != nil {
		return nil, err
	}
	for _, n := range nets {
		if n.Name == types.NetworkAdmin {
			return n, nil
		}
	}
	return nil, fmt.Errorf("admin network group: %w", storage.ErrNotFound)
}

// allGroups returns the cluster network groups followed by the admin group
func (m *Manager) allGroups() ([]Group, error) {
	groups, err := m.NetworkGroups()
	if err != nil {
		return nil, err
	}
	admin, err := m.AdminNetworkGroup()
	if err != nil {
		return nil, err
	}
	return append(groups, Group{NetworkGroup: admin}), nil
}

// SerializeNetworkConfig returns the networks, networking parameters and
// VIPs of the cluster
func (m *Manager) SerializeNetworkConfig() (*NetworkConfig, error) {
	groups, err := m.allGroups()
	if err != nil {
		return nil, err
	}

	cfg := &NetworkConfig{
		Networks:             make([]types.ConfigTree, 0, len(groups)),
		NetworkingParameters: types.ConfigTree{},
		VIPs:                 make(map[string]string),
	}
	for k, v := range m.cluster.NetworkingParameters {
		cfg.NetworkingParameters[k] = v
	}

	for _, g := range groups {
		tree := types.ConfigTree{}
		if err := mapstructure.Decode(g.NetworkGroup, &tree); err != nil {
			return nil, fmt.Errorf("failed to serialize network group %s: %w", g.ID, err)
		}
		tree["cluster_id"] = m.cluster.ID
		cfg.Networks = append(cfg.Networks, tree)

		vips, err := m.store.ListVIPsByNetworkGroup(g.ID)
		if err != nil {
			return nil, err
		}
		for _, vip := range vips {
			cfg.VIPs[g.Name+"_"+vip.Name] = vip.Address
		}
	}

	return cfg, nil
}

// UpdateNetworkConfig applies cfg to the cluster. Networks are matched by
// id; ids that do not belong to the cluster are rejected.
func (m *Manager) UpdateNetworkConfig(cfg *NetworkConfig) error {
	groups, err := m.allGroups()
	if err != nil {
		return err
	}
	byID := make(map[string]*types.NetworkGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g.NetworkGroup
	}

	for _, tree := range cfg.Networks {
		id, _ := tree["id"].(string)
		ng, ok := byID[id]
		if !ok {
			return fmt.Errorf("network group %q does not belong to cluster %s", id, m.cluster.ID)
		}

		updated := *ng
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &updated,
		})
		if err != nil {
			return err
		}
		if err := decoder.Decode(tree); err != nil {
			return fmt.Errorf("invalid network %s: %w", id, err)
		}
		// Identity is owned by the cluster
		updated.ID = ng.ID
		updated.GroupID = ng.GroupID
		updated.ReleaseID = ng.ReleaseID

		if err := m.store.UpdateNetworkGroup(&updated); err != nil {
			return fmt.Errorf("failed to update network group %s: %w", id, err)
		}
	}

	if cfg.NetworkingParameters != nil {
		m.cluster.NetworkingParameters = cfg.NetworkingParameters
		if err := m.store.UpdateCluster(m.cluster); err != nil {
			return fmt.Errorf("failed to update networking parameters: %w", err)
		}
	}

	m.logger.Info().Int("networks", len(cfg.Networks)).Msg("Network configuration updated")
	return nil
}

// GetAssignedVIPs returns network group id -> VIP name -> VIP tree
// ({"ip_addr", "vip_namespace"}) for the network groups named in include,
// or all network groups when include is empty
func (m *Manager) GetAssignedVIPs(include ...string) (map[string]map[string]interface{}, error) {
	groups, err := m.NetworkGroups()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(include))
	for _, name := range include {
		wanted[name] = true
	}

	assigned := make(map[string]map[string]interface{})
	for _, g := range groups {
		if len(wanted) > 0 && !wanted[g.Name] {
			continue
		}
		vips, err := m.store.ListVIPsByNetworkGroup(g.ID)
		if err != nil {
			return nil, err
		}
		for _, vip := range vips {
			if assigned[g.ID] == nil {
				assigned[g.ID] = make(map[string]interface{})
			}
			tree := map[string]interface{}{"ip_addr": vip.Address}
			if vip.Namespace != "" {
				tree["vip_namespace"] = vip.Namespace
			}
			assigned[g.ID][vip.Name] = tree
		}
	}
	return assigned, nil
}

// AssignGivenVIPs stores vips (network group id -> VIP name -> address or
// VIP tree) as user defined VIPs of the cluster
func (m *Manager) AssignGivenVIPs(vips map[string]map[string]interface{}) error {
	groups, err := m.NetworkGroups()
	if err != nil {
		return err
	}
	byID := make(map[string]*types.NetworkGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g.NetworkGroup
	}

	var parsed []*types.VIP
	for ngID, named := range vips {
		ng, ok := byID[ngID]
		if !ok {
			return fmt.Errorf("network group %s does not belong to cluster %s", ngID, m.cluster.ID)
		}
		for name, raw := range named {
			vip, err := parseVIP(ngID, name, raw)
			if err != nil {
				return err
			}
			if err := checkInNetwork(ng, vip.Address); err != nil {
				return fmt.Errorf("vip %s: %w", name, err)
			}
			parsed = append(parsed, vip)
		}
	}

	for _, vip := range parsed {
		if err := m.store.PutVIP(vip); err != nil {
			return fmt.Errorf("failed to store vip %s: %w", vip.Name, err)
		}
	}

	m.logger.Info().Int("vips", len(parsed)).Msg("Assigned given VIPs")
	return nil
}

func parseVIP(ngID, name string, raw interface{}) (*types.VIP, error) {
	vip := &types.VIP{NetworkGroupID: ngID, Name: name, UserDefined: true}
	switch v := raw.(type) {
	case string:
		vip.Address = v
	case map[string]interface{}:
		addr, ok := v["ip_addr"].(string)
		if !ok {
			return nil, fmt.Errorf("vip %s: missing ip_addr", name)
		}
		vip.Address = addr
		if ns, ok := v["vip_namespace"].(string); ok {
			vip.Namespace = ns
		}
	default:
		return nil, fmt.Errorf("vip %s: unexpected value %T", name, raw)
	}
	return vip, nil
}

func checkInNetwork(ng *types.NetworkGroup, address string) error {
	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("invalid address %q", address)
	}
	_, ipNet, err := net.ParseCIDR(ng.CIDR)
	if err != nil {
		return fmt.Errorf("network group %s has invalid cidr %q: %w", ng.ID, ng.CIDR, err)
	}
	if !ipNet.Contains(ip) {
		return fmt.Errorf("address %s is outside of %s (%s)", address, ng.CIDR, ng.Name)
	}
	return nil
}

// AssignVIPsAuto allocates every VIP requested by the release network roles
// that is not assigned yet. VIPs live in the networks of the default node
// group and take the first free address of the network's IP ranges.
func (m *Manager) AssignVIPsAuto() error {
	release, err := m.store.GetRelease(m.cluster.ReleaseID)
	if err != nil {
		return err
	}

	groups, err := m.NetworkGroups()
	if err != nil {
		return err
	}
	nodeGroups, err := m.store.ListNodeGroupsByCluster(m.cluster.ID)
	if err != nil {
		return err
	}
	defaultGroup := ""
	for _, ng := range nodeGroups {
		if ng.IsDefault {
			defaultGroup = ng.ID
		}
	}

	byName := make(map[string]*types.NetworkGroup)
	for _, g := range groups {
		if g.GroupID == defaultGroup {
			byName[g.Name] = g.NetworkGroup
		}
	}

	allocated := 0
	for _, role := range release.NetworkRolesMetadata {
		ng, ok := byName[role.DefaultMapping]
		if !ok || len(role.VIPs) == 0 {
			continue
		}
		for _, rv := range role.VIPs {
			if _, err := m.store.GetVIP(ng.ID, rv.Name); err == nil {
				continue
			}
			addr, err := m.freeAddress(ng)
			if err != nil {
				return fmt.Errorf("failed to allocate vip %s in %s: %w", rv.Name, ng.Name, err)
			}
			vip := &types.VIP{
				NetworkGroupID: ng.ID,
				Name:           rv.Name,
				Address:        addr,
				Namespace:      rv.Namespace,
			}
			if err := m.store.PutVIP(vip); err != nil {
				return err
			}
			allocated++
		}
	}

	m.logger.Info().Int("vips", allocated).Msg("Assigned VIPs automatically")
	return nil
}

// freeAddress returns the first address of ng that is neither used by a
// node nor by a VIP
func (m *Manager) freeAddress(ng *types.NetworkGroup) (string, error) {
	used := make(map[string]bool)
	vips, err := m.store.ListVIPsByNetworkGroup(ng.ID)
	if err != nil {
		return "", err
	}
	for _, v := range vips {
		used[v.Address] = true
	}
	nodes, err := m.store.ListNodes()
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		for _, ip := range n.IPAddrs {
			if ip.NetworkGroupID == ng.ID {
				used[ip.Address] = true
			}
		}
	}
	if ng.Gateway != "" {
		used[ng.Gateway] = true
	}

	ranges, err := addressRanges(ng)
	if err != nil {
		return "", err
	}
	for _, r := range ranges {
		for ip := r[0]; bytes.Compare(ip, r[1]) <= 0; ip = cidr.Inc(ip) {
			if !used[ip.String()] {
				return ip.String(), nil
			}
			if ip.Equal(r[1]) {
				break
			}
		}
	}
	return "", fmt.Errorf("no free address in %s", ng.CIDR)
}

// addressRanges returns the configured IP ranges of ng, or the host range of
// its CIDR when none are configured
func addressRanges(ng *types.NetworkGroup) ([][2]net.IP, error) {
	_, ipNet, err := net.ParseCIDR(ng.CIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid cidr %q: %w", ng.CIDR, err)
	}

	if len(ng.IPRanges) == 0 {
		first, last := cidr.AddressRange(ipNet)
		if cidr.AddressCount(ipNet) > 2 {
			first, last = cidr.Inc(first), cidr.Dec(last)
		}
		return [][2]net.IP{{normalize(first), normalize(last)}}, nil
	}

	ranges := make([][2]net.IP, 0, len(ng.IPRanges))
	for _, r := range ng.IPRanges {
		if len(r) != 2 {
			return nil, fmt.Errorf("invalid ip range %v", r)
		}
		first, last := net.ParseIP(r[0]), net.ParseIP(r[1])
		if first == nil || last == nil || !ipNet.Contains(first) || !ipNet.Contains(last) {
			return nil, fmt.Errorf("ip range %v is outside of %s", r, ng.CIDR)
		}
		ranges = append(ranges, [2]net.IP{normalize(first), normalize(last)})
	}
	return ranges, nil
}

func normalize(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip.To16()
}

// SetIPAddrNetworkGroupIDs remaps the network groups of the node addresses
func (m *Manager) SetIPAddrNetworkGroupIDs(node *types.Node, mapping map[string]string) {
	for i := range node.IPAddrs {
		if id, ok := mapping[node.IPAddrs[i].NetworkGroupID]; ok {
			node.IPAddrs[i].NetworkGroupID = id
		}
	}
}

// SetNICAssignmentNetworkGroupIDs remaps the networks assigned to the node
// interfaces
func (m *Manager) SetNICAssignmentNetworkGroupIDs(node *types.Node, mapping map[string]string) {
	for i := range node.Interfaces {
		node.Interfaces[i].AssignedNetworks = remap(node.Interfaces[i].AssignedNetworks, mapping)
	}
}

// SetBondAssignmentNetworkGroupIDs remaps the networks assigned to the node
// bonds
func (m *Manager) SetBondAssignmentNetworkGroupIDs(node *types.Node, mapping map[string]string) {
	for i := range node.Bonds {
		node.Bonds[i].AssignedNetworks = remap(node.Bonds[i].AssignedNetworks, mapping)
	}
}

func remap(ids []string, mapping map[string]string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if mapped, ok := mapping[id]; ok {
			out[i] = mapped
		} else {
			out[i] = id
		}
	}
	return out
}
