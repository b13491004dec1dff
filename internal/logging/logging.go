package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
// One file per process run, stamped with the start time.
func LogFilePath(logsDir, appName string, startTime time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, startTime.Format("20060102_150405")),
	)
}
