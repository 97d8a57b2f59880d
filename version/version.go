// Package version holds build information injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags "-X github.com/jackzampolin/bibfix/version.GitRelease=..." by the release build.
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo describes the toolchain and platform the binary was built for.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
