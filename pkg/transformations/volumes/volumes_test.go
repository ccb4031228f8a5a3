package volumes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layout() []interface{} {
	return []interface{}{
		map[string]interface{}{
			"id":   "sda",
			"type": "disk",
			"volumes": []interface{}{
				map[string]interface{}{"type": "boot", "size": 300},
				map[string]interface{}{"type": "lvm_meta_pool", "size": 64},
				map[string]interface{}{"type": "pv", "vg": "os", "size": 20000},
				map[string]interface{}{"type": "pv", "vg": "image", "size": 5000},
			},
		},
		map[string]interface{}{
			"id":   "sdb",
			"type": "disk",
			"volumes": []interface{}{
				map[string]interface{}{"type": "pv", "vg": "os", "size": float64(0)},
			},
		},
		map[string]interface{}{
			"id":   "os",
			"type": "vg",
			"volumes": []interface{}{
				map[string]interface{}{"name": "root", "size": 15000, "mount": "/", "file_system": "ext4"},
				map[string]interface{}{"name": "swap", "size": 5000, "mount": "swap", "file_system": "swap"},
			},
		},
	}
}

func TestTransformNodeVolumes(t *testing.T) {
	out, err := TransformNodeVolumes(layout())
	require.NoError(t, err)

	vols := out.([]interface{})
	require.Len(t, vols, 3)

	sda := vols[0].(map[string]interface{})
	assert.Equal(t, []interface{}{
		map[string]interface{}{"type": "boot", "size": 0},
		map[string]interface{}{"type": "lvm_meta_pool", "size": 0},
		map[string]interface{}{"name": "root", "size": 15000, "type": "partition", "mount": "/", "file_system": "ext4"},
		map[string]interface{}{"name": "swap", "size": 5000, "type": "partition", "mount": "swap", "file_system": "swap"},
		map[string]interface{}{"type": "pv", "vg": "image", "size": 5000},
	}, sda["volumes"])

	// Empty os physical volumes are kept as they are
	sdb := vols[1].(map[string]interface{})
	assert.Equal(t, []interface{}{
		map[string]interface{}{"type": "pv", "vg": "os", "size": float64(0)},
	}, sdb["volumes"])

	// The os volume group itself is untouched
	assert.Equal(t, layout()[2], vols[2])
}

func TestTransformNodeVolumesWithoutOSGroup(t *testing.T) {
	in := []interface{}{
		map[string]interface{}{
			"id":      "sda",
			"volumes": []interface{}{map[string]interface{}{"type": "boot", "size": 300}},
		},
	}

	out, err := TransformNodeVolumes(in)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		map[string]interface{}{
			"id":      "sda",
			"volumes": []interface{}{map[string]interface{}{"type": "boot", "size": 300}},
		},
	}, out)
}

func TestTransformNodeVolumesErrors(t *testing.T) {
	_, err := TransformNodeVolumes(map[string]interface{}{})
	assert.Error(t, err)

	_, err = TransformNodeVolumes([]interface{}{
		map[string]interface{}{"id": "os", "volumes": []interface{}{}},
		map[string]interface{}{"id": "sda"},
	})
	assert.EqualError(t, err, "disk sda: missing volumes")
}

func TestManager(t *testing.T) {
	mgr, err := NewManager(nil)
	require.NoError(t, err)

	in := layout()
	out, err := mgr.Apply("6.0", "9.0", in)
	require.NoError(t, err)

	sda := out.([]interface{})[0].(map[string]interface{})
	assert.Len(t, sda["volumes"], 5)

	// Releases already at 6.1 keep their layout
	out, err = mgr.Apply("6.1", "9.0", in)
	require.NoError(t, err)
	assert.Equal(t, layout(), out)
	assert.Equal(t, layout(), in)
}
