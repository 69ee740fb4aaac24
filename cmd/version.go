package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"rag-keeper/cmd/root"
	"rag-keeper/internal/env"
)

// 构建时通过-ldflags "-X rag-keeper/cmd.BuildTime=..."注入
var BuildTime = ""
var BuildCommitId = ""

func printVersions(w io.Writer) {
	fmt.Fprintf(w, "Version %s\n", env.Version)
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Build Commit ID: %s\n", BuildCommitId)
	fmt.Fprintf(w, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `The 'version' command shows version details including git commit and build time`,

	Run: func(cmd *cobra.Command, args []string) {
		printVersions(cmd.OutOrStdout())
	},
}

func init() {
	root.RootCmd.AddCommand(versionCmd)

	versionCmd.Example = `  rag-keeper version`
}
