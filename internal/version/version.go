package version

import "runtime"

var (
	Version   = "development"
	CommitSHA = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	CommitSHA string `json:"commitSha"`
	GoVersion string `json:"goVersion"`
	Os        string `json:"os"`
	Arch      string `json:"arch"`
}

func GetVersionInfo() *Info {
	return &Info{
		Version:   Version,
		CommitSHA: CommitSHA,
		GoVersion: runtime.Version(),
		Os:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
