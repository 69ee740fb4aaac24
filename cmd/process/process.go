package process

import (
	"fmt"

	"github.com/spf13/cobra"

	"rag-keeper/cmd/root"
	"rag-keeper/internal/models"
	"rag-keeper/internal/rpc"
)

const apiPrefix = "/keeper/api/v1/processes"

var processCmd = &cobra.Command{
	Use:     "process",
	Aliases: []string{"ps"},
	Short:   "Process operations (list/describe/start/stop/restart/reset)",
	Long:    `Process operations on a running keeper, via its unix socket or TCP address`,
}

const processExample = `  # list managed processes
  rag-keeper process list
  # restart the backend after a code change
  rag-keeper process restart rag-backend`

func init() {
	root.RootCmd.AddCommand(processCmd)
	processCmd.Example = processExample
}

// newClient 按配置文件定位keeper，socket优先
func newClient() rpc.HTTPClient {
	root.LoadClientConfig()
	return rpc.NewHTTPClient(nil)
}

func processPath(name string, action string) string {
	p := apiPrefix + "/" + name
	if action != "" {
		p += "/" + action
	}
	return p
}

/**
 * Invoke a lifecycle action on the keeper
 * @param {string} name - Process name
 * @param {string} action - start/stop/restart/reset
 * @returns {models.ProcessDetail} Process state after the action
 * @returns {error} Connection error or API error with its code
 */
func processAction(name, action string) (models.ProcessDetail, error) {
	client := newClient()
	defer client.Close()

	var detail models.ProcessDetail
	resp, err := client.Post(processPath(name, action), nil)
	if err != nil {
		return detail, err
	}
	err = resp.Decode(&detail)
	return detail, err
}

// actionCommand 生成start/stop/restart/reset子命令
func actionCommand(action, short, done string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <process name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := processAction(args[0], action)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Process %s %s, status: %s, pid: %d\n", detail.Name, done, detail.Status, detail.Pid)
			return nil
		},
	}
}
