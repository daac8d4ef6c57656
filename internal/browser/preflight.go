package browser

import (
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"

	"github.com/olereon/automaton/internal/autolog"
)

// MINFREEMEMORYMB AND MINFREEDISKMB ARE THE THRESHOLDS BELOW WHICH
// Preflight LOGS A WARNING. THEY ARE ADVISORY ONLY — NEITHER BLOCKS A RUN
// (SPEC_FULL §2, COMPONENT 12: "NEVER A HARD FAILURE").
const (
	MinFreeMemoryMB = 512
	MinFreeDiskMB   = 1024
)

// PREFLIGHT CHECKS AVAILABLE MEMORY AND DISK SPACE AT downloadDir BEFORE A
// RUN LAUNCHES A BROWSER OR STARTS A DOWNLOAD LOOP, GROUNDED ON THE
// TEACHER'S CheckChromeEnvironment, GENERALIZED WITH gopsutil SO IT WORKS
// CROSS-PLATFORM RATHER THAN SHELLING OUT TO `free`/`df`.
func Preflight(downloadDir string) {
	logger := autolog.Default()

	if vmStat, err := mem.VirtualMemory(); err == nil {
		freeMB := vmStat.Available / 1024 / 1024
		if freeMB < MinFreeMemoryMB {
			logger.Warn("available memory is low", map[string]any{"freeMb": freeMB, "thresholdMb": MinFreeMemoryMB})
		} else {
			logger.Debug("memory preflight ok", map[string]any{"freeMb": freeMB})
		}
	} else {
		logger.Debug("could not read memory stats", map[string]any{"error": err.Error()})
	}

	checkPath := downloadDir
	if checkPath == "" {
		checkPath = "."
	}
	if usage, err := disk.Usage(checkPath); err == nil {
		freeMB := usage.Free / 1024 / 1024
		if freeMB < MinFreeDiskMB {
			logger.Warn("available disk space is low", map[string]any{"freeMb": freeMB, "thresholdMb": MinFreeDiskMB, "path": checkPath})
		} else {
			logger.Debug("disk preflight ok", map[string]any{"freeMb": freeMB, "path": checkPath})
		}
	} else {
		logger.Debug("could not read disk usage", map[string]any{"error": err.Error(), "path": checkPath})
	}
}
