package version

import "runtime/debug"

// Set at build time with something like:
// go build -ldflags "-X github.com/zerogroup/uadsr/version.Version=$(git describe --dirty)" ./cmd/uadsr

var Version string

// Hash is the short VCS revision the binary was built from, marked dirty when
// the tree had local changes.
var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	revision, modified := "", false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && modified {
		return revision + "-dirty"
	}
	return revision
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	if Hash != "" {
		return Hash
	}
	return "devel"
}()
