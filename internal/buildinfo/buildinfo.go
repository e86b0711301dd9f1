// Package buildinfo reports the replayer's version and source revision.
package buildinfo

import "runtime/debug"

const develVersion = "dev"

var version = develVersion

// readBuildInfo is extracted for testability.
var readBuildInfo = debug.ReadBuildInfo

// SetVersion overrides the version stamped at build time. Empty values are
// ignored.
func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// Version returns the stamped version, the module version recorded by the
// toolchain, or "dev".
func Version() string {
	if version != develVersion {
		return version
	}
	if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return develVersion
}

// Revision returns the short VCS revision the binary was built from, with a
// "+dirty" suffix for modified trees. It is empty when the toolchain recorded
// no VCS data.
func Revision() string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}
