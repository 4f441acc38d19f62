package main

import "github.com/kebairia/backupctl/cmd"

func main() {
	cmd.Execute()
}
