// Package version 构建版本信息
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version 版本号，构建时通过 -ldflags 注入
	Version = "dev"

	// BuildTime 构建时间，通过 -ldflags 注入
	BuildTime = ""

	// GitCommit Git 提交哈希，未注入时从 debug.BuildInfo 读取
	GitCommit = ""
)

func init() {
	if GitCommit != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			GitCommit = s.Value
		}
	}
}

// GetShortVersion 简短版本号
func GetShortVersion() string {
	return "v" + Version
}

// GetVersion 完整版本信息
func GetVersion() string {
	v := GetShortVersion()
	if BuildTime != "" {
		v += " (built " + BuildTime + ")"
	}
	if GitCommit != "" {
		commit := GitCommit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		v += " commit " + commit
	}
	return v
}

// Detail 版本与运行时信息，供 version 子命令输出
func Detail() string {
	return fmt.Sprintf("crystelf-core %s\n  go: %s %s/%s", GetVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
