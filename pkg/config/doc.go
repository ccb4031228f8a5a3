/*
Package config loads the configuration of the cluster upgrade service.

The configuration is a YAML file layered over Default():

	data_dir: /var/lib/clusterupgrade
	api_addr: :8090
	read_only: false
	provision_delay: 0s
	log:
	  level: info
	  json: false
	transformations:
	  cluster:
	    "9.0": [dns_list, ntp_list]
	  vip:
	    "9.0": []

The transformations section is handed to the transformation registries of
each domain. A version listed there replaces the default transformer list
of that version, so an empty list disables it; versions that are not listed
keep their defaults. Command line flags override file values.
*/
package config
