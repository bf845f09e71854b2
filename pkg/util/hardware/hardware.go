// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hardware

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/lk2023060901/chat-garden-go/pkg/log"
)

var (
	icOnce sync.Once
	ic     bool
)

// GetCPUNum 返回当前进程可用的 CPU 核心数。
// 优先使用 GOMAXPROCS，便于容器环境下的配额生效。
func GetCPUNum() int {
	cur := runtime.GOMAXPROCS(0)
	if cur <= 0 {
		cur = runtime.NumCPU()
	}
	return cur
}

// GetCPUUsage 返回最近一次采样的 CPU 使用率，单位为百分比。
func GetCPUUsage() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		log.Warn("failed to get cpu usage", zap.Error(err))
		return 0
	}
	if len(percents) != 1 {
		log.Warn("something wrong in cpu.Percent, len(percents) must be equal to 1",
			zap.Int("len(percents)", len(percents)))
		return 0
	}
	return percents[0]
}

// GetMemoryCount 返回主机物理内存总量，单位为字节。
func GetMemoryCount() uint64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to get memory count", zap.Error(err))
		return 0
	}
	return stats.Total
}

// GetUsedMemoryCount 返回主机已使用的物理内存，单位为字节。
func GetUsedMemoryCount() uint64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to get used memory count", zap.Error(err))
		return 0
	}
	return stats.Used
}

// GetHostInfo 返回主机名、操作系统与内核版本信息。
func GetHostInfo() (hostname, os, kernel string) {
	info, err := host.Info()
	if err != nil {
		log.Warn("failed to get host info", zap.Error(err))
		return "unknown", runtime.GOOS, "unknown"
	}
	return info.Hostname, info.OS, info.KernelVersion
}

// InContainer 判断当前进程是否运行在容器中。
func InContainer() bool {
	icOnce.Do(func() {
		virt, _, err := host.Virtualization()
		if err != nil {
			ic = false
			return
		}
		ic = virt == "docker" || virt == "lxc" || virt == "podman"
	})
	return ic
}
