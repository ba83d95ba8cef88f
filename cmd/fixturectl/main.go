// Command fixturectl lints data provider catalogs, resolves references
// offline and builds or tears down fixture graphs against a live API.
//
//	fixturectl lint --builtin catalogs/*.yaml
//	APITEST_API_URL=http://localhost/api_jsonrpc.php fixturectl build graph.yaml -o registry.yaml
//	fixturectl resolve --registry registry.yaml params.yaml
//	fixturectl teardown registry.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/StricklySoft/stricklysoft-apitest/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fixturectl:", err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}
