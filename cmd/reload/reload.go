package reload

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rag-keeper/cmd/root"
	"rag-keeper/internal/rpc"
	"rag-keeper/services"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the ecosystem file of a running keeper",
	Long: `Ask the running keeper to re-read its ecosystem file. New apps are started,
removed apps are stopped and changed apps pick up their new settings on the next spawn.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root.LoadClientConfig()
		client := rpc.NewHTTPClient(nil)
		defer client.Close()

		result, err := reloadServerConfig(client)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

/**
 * Reload configuration via the keeper API
 * @param {rpc.HTTPClient} client - Keeper client
 * @returns {services.ReconcileResult} Names added, removed and updated
 * @returns {error} Connection error or reload failure reported by the keeper
 */
func reloadServerConfig(client rpc.HTTPClient) (services.ReconcileResult, error) {
	var result services.ReconcileResult
	resp, err := client.Post("/keeper/api/v1/reload", nil)
	if err != nil {
		return result, err
	}
	err = resp.Decode(&result)
	return result, err
}

func printResult(w io.Writer, r services.ReconcileResult) {
	if len(r.Added)+len(r.Removed)+len(r.Updated) == 0 {
		fmt.Fprintln(w, "Configuration reloaded, nothing changed")
		return
	}
	fmt.Fprintln(w, "Configuration reloaded")
	for _, row := range []struct {
		label string
		names []string
	}{{"added", r.Added}, {"removed", r.Removed}, {"updated", r.Updated}} {
		if len(row.names) > 0 {
			fmt.Fprintf(w, "  %-8s %s\n", row.label+":", strings.Join(row.names, ", "))
		}
	}
}

func init() {
	root.RootCmd.AddCommand(reloadCmd)
}
