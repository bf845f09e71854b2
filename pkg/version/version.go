package version

import (
	"fmt"

	"github.com/blang/semver/v4"
)

// 以下变量在构建时通过 -ldflags 注入。
var (
	// Version 为当前构建的语义化版本号。
	Version = "0.1.0"
	// GitCommit 为构建时的 git 提交哈希。
	GitCommit = "unknown"
	// BuildTime 为构建时间。
	BuildTime = "unknown"
)

// Parse 校验并返回当前版本的语义化版本表示。
func Parse() (semver.Version, error) {
	v, err := semver.ParseTolerant(Version)
	if err != nil {
		return semver.Version{}, fmt.Errorf("invalid build version %q: %w", Version, err)
	}
	return v, nil
}

// String 返回人类可读的完整版本描述。
func String() string {
	return fmt.Sprintf("%s (commit: %s, built at: %s)", Version, GitCommit, BuildTime)
}
