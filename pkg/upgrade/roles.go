package upgrade

// GetNodeRoles resolves the roles of a node moving to another cluster.
// Given roles take precedence over the current ones. With reprovision the
// roles become pending and the node has no roles until it is provisioned
// again; otherwise they apply immediately.
func GetNodeRoles(reprovision bool, currentRoles, givenRoles []string) (roles, pendingRoles []string) {
	use := givenRoles
	if len(use) == 0 {
		use = currentRoles
	}
	use = append([]string{}, use...)

	if reprovision {
		return []string{}, use
	}
	return use, []string{}
}
