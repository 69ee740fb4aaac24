package process

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rag-keeper/internal/models"
)

var eventLimit int

var describeCmd = &cobra.Command{
	Use:   "describe <process name>",
	Short: "Show configuration, state and recent events of a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		resp, err := client.Get(processPath(args[0], ""), nil)
		if err != nil {
			return err
		}
		var detail models.ProcessDetail
		if err := resp.Decode(&detail); err != nil {
			return err
		}
		resp, err = client.Get(processPath(args[0], "events"), map[string]interface{}{"limit": eventLimit})
		if err != nil {
			return err
		}
		var events []models.Event
		if err := resp.Decode(&events); err != nil {
			return err
		}
		renderDetail(cmd.OutOrStdout(), detail, events)
		return nil
	},
}

func init() {
	processCmd.AddCommand(describeCmd)
	describeCmd.Flags().IntVarP(&eventLimit, "events", "n", 10, "Number of recent events to show")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

/**
 * Render one process as a key/value table followed by its events
 * @param {io.Writer} w - Output
 * @param {models.ProcessDetail} p - Process state
 * @param {[]models.Event} events - Recent events, oldest first
 */
func renderDetail(w io.Writer, p models.ProcessDetail, events []models.Event) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(p.Name)
	t.AppendRows([]table.Row{
		{"status", p.Status},
		{"pid", p.Pid},
		{"run id", p.RunID},
		{"command", commandLine(p)},
		{"interpreter", p.Interpreter},
		{"cwd", p.WorkDir},
		{"out log", p.OutFile},
		{"error log", p.ErrorFile},
		{"autorestart", p.AutoRestart},
		{"restart delay", fmt.Sprintf("%dms", p.RestartDelay)},
		{"restarts", fmt.Sprintf("%d/%d (total %d)", p.RestartCount, p.MaxRestarts, p.TotalRestarts)},
		{"started", formatTime(p.StartTime)},
		{"uptime", p.Uptime},
		{"last exit", formatTime(p.LastExitTime)},
		{"last exit code", p.LastExitCode},
		{"last exit reason", p.LastExitReason},
	})
	t.Render()

	if len(events) == 0 {
		return
	}
	e := table.NewWriter()
	e.SetOutputMirror(w)
	e.SetStyle(table.StyleLight)
	e.AppendHeader(table.Row{"Time", "Event", "PID", "Exit", "Status", "Reason"})
	for _, ev := range events {
		e.AppendRow(table.Row{formatTime(ev.OccurredAt), ev.Type, ev.Pid, ev.ExitCode, ev.Status, ev.Reason})
	}
	e.Render()
}
