package check

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rag-keeper/cmd/root"
	"rag-keeper/internal/models"
	"rag-keeper/internal/rpc"
	"rag-keeper/internal/utils"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check keeper status and the health of every process",
	Long:  `Check keeper status by calling /healthz and the process list of a running keeper`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root.LoadClientConfig()
		client := rpc.NewHTTPClient(nil)
		defer client.Close()

		health, list, err := fetchStatus(client)
		if err != nil {
			return err
		}
		displayCheckResults(cmd.OutOrStdout(), health, list)
		lost := findLostPids(list, utils.IsProcessRunning)
		displayLostPids(cmd.OutOrStdout(), lost)
		if health.Metrics.ErroredProcesses > 0 || len(lost) > 0 {
			return fmt.Errorf("%d process(es) errored, %d pid(s) lost", health.Metrics.ErroredProcesses, len(lost))
		}
		return nil
	},
}

const checkExample = `  # Check keeper status
  rag-keeper check`

/**
 * Query keeper health and process states
 * @param {rpc.HTTPClient} client - Keeper client
 * @returns {models.HealthResponse} Keeper level status
 * @returns {[]models.ProcessDetail} Processes in declaration order
 * @returns {error} Connection or API error
 */
func fetchStatus(client rpc.HTTPClient) (models.HealthResponse, []models.ProcessDetail, error) {
	var health models.HealthResponse
	var list []models.ProcessDetail

	resp, err := client.Get("/healthz", nil)
	if err != nil {
		return health, nil, err
	}
	if err := resp.Decode(&health); err != nil {
		return health, nil, err
	}
	resp, err = client.Get("/keeper/api/v1/processes", nil)
	if err != nil {
		return health, nil, err
	}
	if err := resp.Decode(&list); err != nil {
		return health, nil, err
	}
	return health, list, nil
}

/**
 * Find running processes whose PID no longer exists on this host
 * @param {[]models.ProcessDetail} list - Processes reported by the keeper
 * @param {func(int) (bool, error)} alive - Liveness probe, utils.IsProcessRunning
 * @returns {[]models.ProcessDetail} Processes the keeper believes are running but are gone
 * @description
 * - The keeper listens on a unix socket or a local address, so its PIDs are local
 * - A probe error (e.g. EPERM) is not counted as lost
 */
func findLostPids(list []models.ProcessDetail, alive func(int) (bool, error)) []models.ProcessDetail {
	var lost []models.ProcessDetail
	for _, p := range list {
		if p.Status != models.StatusRunning || p.Pid <= 0 {
			continue
		}
		if ok, err := alive(p.Pid); err == nil && !ok {
			lost = append(lost, p)
		}
	}
	return lost
}

func displayLostPids(w io.Writer, lost []models.ProcessDetail) {
	for _, p := range lost {
		fmt.Fprintf(w, "❌ %s: PID %d 状态为running但进程不存在\n", p.Name, p.Pid)
	}
}

func statusIcon(s models.RunStatus) string {
	switch s {
	case models.StatusRunning:
		return "✅"
	case models.StatusWaiting:
		return "⚠️"
	case models.StatusErrored:
		return "❌"
	default:
		return "⏹"
	}
}

func displayProcesses(w io.Writer, list []models.ProcessDetail) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(w, "=== 进程检查结果 (%d 项) ===\n", len(list))
	for _, p := range list {
		fmt.Fprintf(w, "%s %s", statusIcon(p.Status), p.Name)
		if p.Pid > 0 {
			fmt.Fprintf(w, " (PID: %d)", p.Pid)
		}
		fmt.Fprintf(w, " 状态: %s", p.Status)
		if p.RestartCount > 0 {
			fmt.Fprintf(w, " 重启次数: %d/%d", p.RestartCount, p.MaxRestarts)
		}
		if p.Status != models.StatusRunning && p.LastExitReason != "" {
			fmt.Fprintf(w, " 最后退出: %s", p.LastExitReason)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

/**
 * Display keeper status and process results
 * @param {io.Writer} w - Output
 * @param {models.HealthResponse} health - Keeper status
 * @param {[]models.ProcessDetail} list - Processes
 */
func displayCheckResults(w io.Writer, health models.HealthResponse, list []models.ProcessDetail) {
	fmt.Fprintln(w, "=== rag-keeper Status Check ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "版本: %s\n", health.Version)
	fmt.Fprintf(w, "启动时间: %s (运行 %s)\n", health.StartTime, health.Uptime)
	fmt.Fprintf(w, "进程: %d 运行 / %d 总数 / %d 已放弃\n",
		health.Metrics.RunningProcesses, health.Metrics.TotalProcesses, health.Metrics.ErroredProcesses)
	fmt.Fprintf(w, "请求: %d (错误 %d)\n", health.Metrics.TotalRequests, health.Metrics.ErrorRequests)
	fmt.Fprintln(w)

	displayProcesses(w, list)
	fmt.Fprintln(w, "=== 检查完成 ===")
}

func init() {
	checkCmd.Flags().SortFlags = false
	checkCmd.Example = checkExample
	root.RootCmd.AddCommand(checkCmd)
}
