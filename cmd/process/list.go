package process

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rag-keeper/internal/models"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List managed processes and their state",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := fetchProcesses()
		if err != nil {
			return err
		}
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), list)
		}
		renderProcessTable(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	processCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print raw JSON instead of a table")
}

func fetchProcesses() ([]models.ProcessDetail, error) {
	client := newClient()
	defer client.Close()

	resp, err := client.Get(apiPrefix, nil)
	if err != nil {
		return nil, err
	}
	var list []models.ProcessDetail
	if err := resp.Decode(&list); err != nil {
		return nil, err
	}
	return list, nil
}

/**
 * Render processes as a table
 * @param {io.Writer} w - Output
 * @param {[]models.ProcessDetail} list - Processes in declaration order
 */
func renderProcessTable(w io.Writer, list []models.ProcessDetail) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Status", "PID", "Restarts", "Uptime", "Command"})
	for _, p := range list {
		pid := "-"
		if p.Pid > 0 {
			pid = fmt.Sprint(p.Pid)
		}
		uptime := p.Uptime
		if uptime == "" {
			uptime = "-"
		}
		t.AppendRow(table.Row{
			p.Name,
			p.Status,
			pid,
			fmt.Sprintf("%d/%d", p.RestartCount, p.TotalRestarts),
			uptime,
			commandLine(p),
		})
	}
	t.Render()
}

func commandLine(p models.ProcessDetail) string {
	parts := append([]string{p.Command}, p.Args...)
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
