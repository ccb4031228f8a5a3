package transformations

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses an environment version of the form MAJOR.MINOR or
// MAJOR.MINOR.PATCH. Versions compare numerically, so "9.10" sorts after "9.2".
func ParseVersion(v string) (*semver.Version, error) {
	if dots := strings.Count(v, "."); dots < 1 || dots > 2 {
		return nil, fmt.Errorf("invalid version %q: expected MAJOR.MINOR[.PATCH]", v)
	}

	ver, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", v, err)
	}
	if ver.Prerelease() != "" || ver.Metadata() != "" {
		return nil, fmt.Errorf("invalid version %q: pre-release and build metadata are not allowed", v)
	}

	return ver, nil
}
