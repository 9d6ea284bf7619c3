package mods

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// set by the linker, -X github.com/machbase/neo-kalman/mods.versionString=...
var (
	versionString  = "v0.0.0-dev"
	versionGitSHA  = ""
	buildTimestamp = ""
)

type Version struct {
	Major      int    `json:"major"`
	Minor      int    `json:"minor"`
	Patch      int    `json:"patch"`
	Prerelease string `json:"prerelease,omitempty"`
	GitSHA     string `json:"git"`
}

var _version *Version

func GetVersion() *Version {
	if _version == nil {
		v, err := semver.NewVersion(versionString)
		if err != nil {
			_version = &Version{GitSHA: versionGitSHA}
		} else {
			_version = &Version{
				Major:      int(v.Major()),
				Minor:      int(v.Minor()),
				Patch:      int(v.Patch()),
				Prerelease: v.Prerelease(),
				GitSHA:     versionGitSHA,
			}
		}
	}
	return _version
}

func DisplayVersion() string {
	return strings.ToUpper(versionString)
}

func VersionString() string {
	return fmt.Sprintf("%s (%v %v %s)", strings.ToUpper(versionString), versionGitSHA, buildTimestamp, runtime.Version())
}

func BuildTimestamp() string {
	return buildTimestamp
}
