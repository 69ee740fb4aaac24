package process

func init() {
	restartCmd := actionCommand("restart", "Stop and start a process, also revives errored processes", "restarted")
	processCmd.AddCommand(restartCmd)
}
