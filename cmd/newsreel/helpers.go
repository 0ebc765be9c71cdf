package main

import (
	"fmt"
	"time"
)

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%02ds", minutes, seconds)
}

func formatSize(bytes int64) string {
	const mib = 1 << 20
	if bytes >= mib {
		return fmt.Sprintf("%.1f MiB", float64(bytes)/float64(mib))
	}
	return fmt.Sprintf("%.1f KiB", float64(bytes)/float64(1<<10))
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
