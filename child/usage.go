package child

import (
	"github.com/shirou/gopsutil/v3/process"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/errwrap"
)

// Usage is a point-in-time resource sample for a running child.
type Usage struct {
	CPUPercent float64
	RSSBytes   uint64
}

// Usage samples the child's CPU and resident memory. It fails once the
// process has exited.
func (h *Handle) Usage() (Usage, error) {
	if h.cmd.Process == nil {
		return Usage{}, errwrap.Wrap(ErrNotStarted, component, "usage", "", nil)
	}
	proc, err := process.NewProcess(int32(h.cmd.Process.Pid))
	if err != nil {
		return Usage{}, errwrap.Wrap(ErrNotStarted, component, "usage", "open process", err)
	}
	var usage Usage
	if cpu, err := proc.CPUPercent(); err == nil {
		usage.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		usage.RSSBytes = mem.RSS
	}
	return usage, nil
}
