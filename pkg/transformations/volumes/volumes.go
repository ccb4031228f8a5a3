// Package volumes holds the transformations of node volume layouts. The
// data is the list of disk and volume group descriptors of a node.
package volumes

import (
	"fmt"

	"github.com/cuemby/clusterupgrade/pkg/transformations"
)

// Name is the transformation domain of node volumes
const Name = "volumes"

// OSVolumeGroup is the id of the operating system volume group
const OSVolumeGroup = "os"

// DefaultConfig returns the default version -> transformer names mapping
func DefaultConfig() map[string][]string {
	return map[string][]string{
		"6.1": {"transform_node_volumes"},
	}
}

func init() {
	transformations.Register(Name, "6.1", "transform_node_volumes", TransformNodeVolumes)
}

// NewManager builds the node volumes manager
func NewManager(settings transformations.Settings) (*transformations.Manager, error) {
	return transformations.NewManager(transformations.Config{
		Name:     Name,
		Defaults: DefaultConfig(),
		Settings: settings,
	})
}

// NewLazy returns a volumes manager that is built on first use
func NewLazy(settings transformations.Settings) *transformations.Lazy {
	return transformations.NewLazy(func() (*transformations.Manager, error) {
		return NewManager(settings)
	})
}

// TransformNodeVolumes replaces the LVM based OS layout with plain
// partitions. On every disk a physical volume of the "os" volume group is
// replaced by one partition per logical volume of that group, and
// lvm_meta_pool and boot entries are shrunk to zero. Layouts without an "os"
// volume group are returned unchanged.
func TransformNodeVolumes(data interface{}) (interface{}, error) {
	vols, ok := data.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected volumes data %T", data)
	}

	var osVG map[string]interface{}
	for _, v := range vols {
		vol, ok := v.(map[string]interface{})
		if ok && vol["id"] == OSVolumeGroup {
			osVG = vol
			break
		}
	}
	if osVG == nil {
		return vols, nil
	}

	osVolumes, err := volumeList(osVG)
	if err != nil {
		return nil, fmt.Errorf("os volume group: %w", err)
	}

	for _, v := range vols {
		disk, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected disk %T", v)
		}
		if disk["id"] == OSVolumeGroup {
			continue
		}

		diskVolumes, err := volumeList(disk)
		if err != nil {
			return nil, fmt.Errorf("disk %v: %w", disk["id"], err)
		}

		replaced := make([]interface{}, 0, len(diskVolumes))
		for _, dv := range diskVolumes {
			entry, ok := dv.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("disk %v: unexpected volume %T", disk["id"], dv)
			}

			size, _ := transformations.Number(entry["size"])
			switch {
			case entry["type"] == "pv" && entry["vg"] == OSVolumeGroup && size > 0:
				for _, ov := range osVolumes {
					lv, ok := ov.(map[string]interface{})
					if !ok {
						return nil, fmt.Errorf("os volume group: unexpected volume %T", ov)
					}
					replaced = append(replaced, map[string]interface{}{
						"name":        lv["name"],
						"size":        lv["size"],
						"type":        "partition",
						"mount":       lv["mount"],
						"file_system": lv["file_system"],
					})
				}
			case entry["type"] == "lvm_meta_pool" || entry["type"] == "boot":
				entry["size"] = 0
				replaced = append(replaced, entry)
			default:
				replaced = append(replaced, entry)
			}
		}
		disk["volumes"] = replaced
	}

	return vols, nil
}

func volumeList(vol map[string]interface{}) ([]interface{}, error) {
	raw, ok := vol["volumes"]
	if !ok {
		return nil, fmt.Errorf("missing volumes")
	}
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("volumes must be a list, got %T", raw)
	}
	return list, nil
}
