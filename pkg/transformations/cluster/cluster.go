// Package cluster holds the transformations of cluster attributes. The data
// is a tree with "editable" and "generated" attribute subtrees.
package cluster

import (
	"fmt"
	"strings"

	"github.com/cuemby/clusterupgrade/pkg/transformations"
)

// Name is the transformation domain of cluster attributes
const Name = "cluster"

// DefaultConfig returns the default version -> transformer names mapping
func DefaultConfig() map[string][]string {
	return map[string][]string{
		"9.0": {"dns_list", "ntp_list", "drop_provision"},
		"6.1": {"image_provision"},
	}
}

func init() {
	transformations.Register(Name, "9.0", "dns_list", TransformDNSList)
	transformations.Register(Name, "9.0", "ntp_list", TransformNTPList)
	transformations.Register(Name, "9.0", "drop_provision", DropGeneratedProvision)
	transformations.Register(Name, "6.1", "image_provision", EnableImageProvision)
}

// NewManager builds the cluster attributes manager
func NewManager(settings transformations.Settings) (*transformations.Manager, error) {
	return transformations.NewManager(transformations.Config{
		Name:     Name,
		Defaults: DefaultConfig(),
		Settings: settings,
	})
}

// NewLazy returns a cluster manager that is built on first use
func NewLazy(settings transformations.Settings) *transformations.Lazy {
	return transformations.NewLazy(func() (*transformations.Manager, error) {
		return NewManager(settings)
	})
}

// TransformToTextList rewrites a "text" field holding a comma separated
// string into a "text_list" field holding the trimmed parts. Other field
// types are returned unchanged.
func TransformToTextList(field map[string]interface{}) error {
	if field["type"] != "text" {
		return nil
	}

	value, ok := field["value"].(string)
	if !ok {
		return fmt.Errorf("text field value must be a string, got %T", field["value"])
	}

	parts := strings.Split(value, ",")
	list := make([]interface{}, 0, len(parts))
	for _, part := range parts {
		list = append(list, strings.TrimSpace(part))
	}

	field["type"] = "text_list"
	field["value"] = list
	return nil
}

// TransformDNSList converts editable.external_dns.dns_list to a text list
func TransformDNSList(data interface{}) (interface{}, error) {
	return transformListField(data, "external_dns", "dns_list")
}

// TransformNTPList converts editable.external_ntp.ntp_list to a text list
func TransformNTPList(data interface{}) (interface{}, error) {
	return transformListField(data, "external_ntp", "ntp_list")
}

func transformListField(data interface{}, section, field string) (interface{}, error) {
	sub, err := transformations.Subtree(data, "editable", section, field)
	if err != nil {
		return nil, err
	}
	if err := TransformToTextList(sub); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", section, field, err)
	}
	return data, nil
}

// DropGeneratedProvision removes generated.provision when present
func DropGeneratedProvision(data interface{}) (interface{}, error) {
	generated, err := transformations.Subtree(data, "generated")
	if err != nil {
		return nil, err
	}
	delete(generated, "provision")
	return data, nil
}

// EnableImageProvision switches editable.provision.method to image based
// provisioning
func EnableImageProvision(data interface{}) (interface{}, error) {
	method, err := transformations.Subtree(data, "editable", "provision", "method")
	if err != nil {
		return nil, err
	}
	method["value"] = "image"
	return data, nil
}
