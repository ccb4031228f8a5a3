/*
Package network manages the network groups and virtual IPs of a cluster.

A Manager is bound to one cluster. Every node group of the cluster owns a
network group per release network (public, management, storage, ...);
the admin network (fuelweb_admin) is shared by all clusters and has no node
group.

SerializeNetworkConfig turns the network groups into plain trees with
mapstructure so they can be merged key by key; UpdateNetworkConfig decodes
trees back onto the network groups they name by id. Identity fields (id,
group_id, release) are never taken from the input.

VIPs are addressed as network group id -> VIP name. AssignGivenVIPs stores
caller supplied addresses after checking they lie inside the network CIDR;
AssignVIPsAuto allocates the VIPs the release network roles ask for from
the first free address of the mapped network, skipping the gateway, node
addresses and VIPs that are already taken.
*/
package network
