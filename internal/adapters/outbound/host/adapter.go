package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/skillcoder/toolmanager/internal/logic/resource"
)

const kibibyte = 1024

type adapter struct {
	logger   *slog.Logger
	fs       procfs.FS
	diskPath string
}

// New creates a host reader over the proc filesystem mounted at procPath and
// the filesystem holding diskPath.
func New(logger *slog.Logger, procPath, diskPath string) (resource.HostReader, error) {
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", procPath, err)
	}

	return &adapter{
		logger:   logger.With("component", "host-reader"),
		fs:       fs,
		diskPath: diskPath,
	}, nil
}

var _ resource.HostReader = (*adapter)(nil)

func (a *adapter) Read(ctx context.Context) (resource.HostStats, error) {
	if err := ctx.Err(); err != nil {
		return resource.HostStats{}, err
	}

	stat, err := a.fs.Stat()
	if err != nil {
		return resource.HostStats{}, fmt.Errorf("read cpu stat: %w", err)
	}

	meminfo, err := a.fs.Meminfo()
	if err != nil {
		return resource.HostStats{}, fmt.Errorf("read meminfo: %w", err)
	}

	stats := resource.HostStats{
		CPU:               toCPUTimes(stat.CPUTotal),
		MemTotalBytes:     kib(meminfo.MemTotal),
		MemAvailableBytes: kib(meminfo.MemAvailable),
	}

	var fsStat unix.Statfs_t
	if err := unix.Statfs(a.diskPath, &fsStat); err != nil {
		// Disk usage is informational only.
		a.logger.DebugContext(ctx, "statfs failed", "diskPath", a.diskPath, "reason", err)

		return stats, nil
	}

	blockSize := uint64(fsStat.Bsize) //nolint:gosec // block size is never negative
	stats.DiskTotalBytes = fsStat.Blocks * blockSize
	stats.DiskFreeBytes = fsStat.Bavail * blockSize

	return stats, nil
}

func toCPUTimes(c procfs.CPUStat) resource.CPUTimes {
	idle := c.Idle + c.Iowait
	total := c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal

	return resource.CPUTimes{
		Busy:  total - idle,
		Total: total,
	}
}

func kib(v *uint64) uint64 {
	if v == nil {
		return 0
	}

	return *v * kibibyte
}
