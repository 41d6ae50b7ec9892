// Package format holds pure display-formatting helpers.
package format

import "fmt"

// Duration renders elapsed whole seconds as a compact human string:
// "42s", "3m 5s", "1h 0m 12s". Input is expected to already be floored
// to whole seconds; negative input is clamped to zero.
func Duration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}

	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}

// Clock renders elapsed seconds as "HH:MM:SS" for the global run timer.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
