package main

import "github.com/dt-pm-tools/jira-bridge/cmd"

func main() {
	cmd.Execute()
}
