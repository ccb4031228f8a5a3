/*
Package transformations migrates configuration trees between environment
versions.

A configuration tree is the untyped, JSON-like data of a cluster (its
editable and generated attributes), of a node (its volume layout) or of a
cluster's VIPs. Each domain owns a set of small transformer functions, each
tagged with the environment version whose schema it introduces. Upgrading a
tree from one release to another runs every transformer whose version lies
in the half-open window (from, to].

# Registration

Transformers are registered by name in a Table, scoped by domain and
version:

	func init() {
		transformations.Register("cluster", "9.0", "dns_list", TransformDNSList)
	}

The namespace of a domain version is
"clusterupgrade.transformations.<domain>.<version>".

# Managers

A Manager is built for one domain from its default configuration (version
to ordered list of transformer names), optionally overridden per version by
Settings. Building fails with MissingTransformerError when a configured name
is not registered, so a bad configuration is caught before any data is
touched.

	mgr, err := transformations.NewManager(transformations.Config{
		Name:     "cluster",
		Defaults: map[string][]string{"9.0": {"dns_list", "ntp_list"}},
	})
	out, err := mgr.Apply("8.0", "9.0", attrs)

Apply runs the selected versions in ascending order and the transformers of
a version in configured order. Every transformer receives a deep copy of the
previous output; the caller's tree is never modified.

# Lazy construction

Lazy wraps a manager constructor so that the first Apply builds the manager
exactly once, even under concurrent callers. Later calls skip the lock.
A failed build is returned to the caller and retried on the next call.
*/
package transformations
