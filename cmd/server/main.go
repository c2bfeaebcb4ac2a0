// Command workspacegraph-mediator runs the workspace graph mediation
// service: it fetches paginated entity pages from an upstream workspace
// API, synthesizes bidirectional relationships, builds a deduplicated
// graph, and serves it all through a cached, versioned REST API.
package main

import (
	"log"
	"os"

	"github.com/kestrel-labs/workspacegraph/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
