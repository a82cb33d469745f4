package configstore

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/HerbHall/mediatheme/internal/version"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemInfo is an advisory snapshot of the host. Values may be zero when
// the platform cannot report them.
type SystemInfo struct {
	PluginVersion  string `json:"plugin_version" example:"1.0.0"`
	GoVersion      string `json:"go_version" example:"go1.25.7"`
	ServerTime     string `json:"server_time" example:"2026-10-19 14:03:22"`
	ConfigWritable bool   `json:"config_writable"`
	DiskSpace      uint64 `json:"disk_space" example:"52428800000"`
	MemoryUsage    uint64 `json:"memory_usage" example:"18874368"`
}

// SystemInfo reports config directory writability, free disk space under
// the config directory, and resident memory of this process.
func (s *Store) SystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{
		PluginVersion:  version.Short(),
		GoVersion:      runtime.Version(),
		ServerTime:     time.Now().Format("2006-01-02 15:04:05"),
		ConfigWritable: dirWritable(s.dir),
	}

	if usage, err := disk.UsageWithContext(ctx, s.dir); err == nil {
		info.DiskSpace = usage.Free
	} else {
		s.logger.Debug("disk usage unavailable", zap.Error(err))
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil { //nolint:gosec // G115: pid fits in int32
		if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
			info.MemoryUsage = mem.RSS
		} else {
			s.logger.Debug("process memory unavailable", zap.Error(err))
		}
	}

	return info
}

// CheckWritable returns an error when the config directory cannot be
// written. It backs the readiness check.
func (s *Store) CheckWritable(_ context.Context) error {
	if !dirWritable(s.dir) {
		return fmt.Errorf("%w: config directory %s is not writable", ErrIO, s.dir)
	}
	return nil
}

// dirWritable checks by creating and removing a temp file.
func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
