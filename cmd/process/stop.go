package process

func init() {
	stopCmd := actionCommand("stop", "Stop a process and cancel pending restarts", "stopped")
	stopCmd.Long = `Send SIGTERM to the process group, then SIGKILL after kill_timeout.
A stopped process is not restarted until started again.`
	processCmd.AddCommand(stopCmd)
}
