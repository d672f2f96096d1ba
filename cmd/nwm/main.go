package main

import (
	"fmt"
	"os"

	fetch "github.com/saveenergy/nwm/cmd/fetch"
	mcpcmd "github.com/saveenergy/nwm/cmd/mcp"
)

var version = "dev"

var (
	runFetch = fetch.Run
	runMCP   = mcpcmd.Run
)

func main() {
	os.Exit(run(os.Args[1:], version))
}

func run(args []string, version string) int {
	if len(args) == 0 {
		return runFetch(nil, version)
	}

	switch args[0] {
	case "mcp":
		return runMCP(version)
	case "fetch":
		return runFetch(args[1:], version)
	case "help":
		return runFetch([]string{"--help"}, version)
	case "version":
		fmt.Fprintf(os.Stdout, "nwm version %s\n", version)
		return 0
	default:
		return runFetch(args, version)
	}
}
