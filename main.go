package main

import (
	"os"

	"community-backend/cmd"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "backup" {
		cmd.RunBackup()
		return
	}
	cmd.Run()
}
