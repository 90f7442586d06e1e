package cmd

import (
	"fmt"
	"time"

	"taskplane/pkg/api"

	"github.com/spf13/cobra"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func printJobStatus(cmd *cobra.Command, s api.JobStatusResponse) {
	finished := s.Stats.Success + s.Stats.Failed
	icon := colorYellow + "⏳" + colorReset
	if s.Stats.Total > 0 && finished == s.Stats.Total {
		icon = colorGreen + "✓" + colorReset
	}

	cmd.Printf("%s %sJob Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")
	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, s.Job.ID)
	cmd.Printf("%sSite:%s        %s\n", colorDim, colorReset, s.Job.Site)
	cmd.Printf("%sPrice:%s       %d\n", colorDim, colorReset, s.Job.Price)
	cmd.Printf("%sTasks:%s       %d of %d requested\n", colorDim, colorReset, s.Job.Total, s.Job.Requested)
	cmd.Printf("%sCreated:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(s.Job.CreatedAt))
	cmd.Println()
	cmd.Printf("%sPending:%s     %s%d%s\n", colorDim, colorReset, colorCyan, s.Stats.Pending, colorReset)
	cmd.Printf("%sRunning:%s     %s%d%s\n", colorDim, colorReset, colorYellow, s.Stats.Running, colorReset)
	cmd.Printf("%sSuccess:%s     %s%d%s\n", colorDim, colorReset, colorGreen, s.Stats.Success, colorReset)
	cmd.Printf("%sFailed:%s      %s%d%s\n", colorDim, colorReset, colorRed, s.Stats.Failed, colorReset)
	cmd.Printf("%sQueued:%s      %d\n", colorDim, colorReset, s.QueueDepth)
	cmd.Printf("%sProgress:%s    %s\n", colorDim, colorReset, progress(finished, s.Stats.Total))
}

func progress(done, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", done, total, float64(done)*100/float64(total))
}

func formatTimeWithRelative(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relativeTime(t), colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
