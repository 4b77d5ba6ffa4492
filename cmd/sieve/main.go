// Command sieve compiles whitelisted client filters into parameterized SQL.
package main

import (
	"os"

	"github.com/roach88/sieve/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
