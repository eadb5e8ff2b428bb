package version

import (
	"github.com/prometheus/common/version"
)

// Program is the name reported in build info and the version command.
const Program = "account-portal"

// Values are injected at build time with
// -ldflags "-X github.com/prometheus/common/version.Version=... -X github.com/prometheus/common/version.Revision=..."
func init() {
	if version.Version == "" {
		version.Version = "dev"
	}
}

func GetVersion() string {
	return version.Version
}

func GetGitCommit() string {
	return version.GetRevision()
}

func GetBuildTime() string {
	return version.BuildDate
}

func GetFullVersion() string {
	return version.Print(Program)
}

// Info is the one-line form used in startup logs.
func Info() string {
	return version.Info()
}
