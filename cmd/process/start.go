package process

func init() {
	startCmd := actionCommand("start", "Start a stopped, exited or errored process", "started")
	startCmd.Example = `  rag-keeper process start frontend`
	processCmd.AddCommand(startCmd)
}
