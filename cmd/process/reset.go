package process

func init() {
	processCmd.AddCommand(actionCommand("reset", "Reset restart counters of a process", "reset"))
}
