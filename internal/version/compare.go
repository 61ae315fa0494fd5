package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
)

// CheckConfigCompatibility checks whether a config file written for configVersion
// can be loaded by a binary at binaryVersion.
//
// Compatibility Rules:
//   - An empty config version is treated as compatible (older files had no version field)
//   - If the binary version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - The config minor version must not be newer than the binary's
//
// Examples:
//   - Binary 1.2.0, Config 1.2.0 -> OK
//   - Binary 1.3.0, Config 1.2.0 -> OK (older config)
//   - Binary 1.2.0, Config 1.3.0 -> ERROR (config uses newer fields)
//   - Binary 2.0.0, Config 1.2.0 -> ERROR (major differs)
func CheckConfigCompatibility(binaryVersion, configVersion string) error {
	binaryVersion = strings.TrimPrefix(binaryVersion, "v")
	configVersion = strings.TrimPrefix(configVersion, "v")

	if configVersion == "" || binaryVersion == "main" {
		return nil
	}

	binarySemver, err := semver.NewVersion(binaryVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid binary version '%s'", binaryVersion)
	}

	configSemver, err := semver.NewVersion(configVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid config version '%s'", configVersion)
	}

	if binarySemver.Major() != configSemver.Major() {
		return errors.Newf(errors.ErrCodeInvalidVersion, "major version mismatch: binary is %d.x.x but config requires %d.x.x",
			binarySemver.Major(), configSemver.Major())
	}

	if configSemver.Minor() > binarySemver.Minor() {
		return errors.Newf(errors.ErrCodeInvalidVersion, "config version %s is newer than binary version %s",
			configSemver.String(), binarySemver.String())
	}

	return nil
}
