package logs

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rag-keeper/cmd/root"
	"rag-keeper/internal/models"
	"rag-keeper/internal/rpc"
	"rag-keeper/services"
)

var (
	stream string
	lines  int
)

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().StringVarP(&stream, "stream", "s", services.StreamOut, "Log stream, out or err")
	Cmd.Flags().IntVarP(&lines, "lines", "n", services.DefaultTailLines, "Number of lines from the end")
	Cmd.Example = `  # last 50 lines of the backend stdout
  rag-keeper logs rag-backend
  # last 200 lines of the frontend stderr
  rag-keeper logs frontend -s err -n 200`
}

var Cmd = &cobra.Command{
	Use:   "logs <process name>",
	Short: "Show the tail of a process log file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root.LoadClientConfig()
		client := rpc.NewHTTPClient(nil)
		defer client.Close()

		tail, err := fetchTail(client, args[0], stream, lines)
		if err != nil {
			return err
		}
		printTail(cmd.OutOrStdout(), tail)
		return nil
	},
}

/**
 * Fetch log tail of a process from the keeper
 * @param {rpc.HTTPClient} client - Keeper client
 * @param {string} name - Process name
 * @param {string} stream - out or err
 * @param {int} n - Number of lines
 * @returns {models.LogTail} File path and lines
 */
func fetchTail(client rpc.HTTPClient, name, stream string, n int) (models.LogTail, error) {
	var tail models.LogTail
	path := "/keeper/api/v1/processes/" + name + "/logs"
	resp, err := client.Get(path, map[string]interface{}{"stream": stream, "lines": n})
	if err != nil {
		return tail, err
	}
	err = resp.Decode(&tail)
	return tail, err
}

func printTail(w io.Writer, tail models.LogTail) {
	fmt.Fprintf(w, "==> %s <==\n", tail.File)
	for _, line := range tail.Lines {
		fmt.Fprintln(w, line)
	}
}
