package cmd

import (
	_ "rag-keeper/cmd/check"
	_ "rag-keeper/cmd/configcmd"
	_ "rag-keeper/cmd/logs"
	_ "rag-keeper/cmd/process"
	_ "rag-keeper/cmd/reload"
	_ "rag-keeper/cmd/root"
	_ "rag-keeper/cmd/serve"
	_ "rag-keeper/cmd/server"
)
