// Command secagent is the command line client for the security agent.
package main

import (
	"os"

	"sec-agent/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
