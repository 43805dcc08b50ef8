package main

import (
	"context"
	"os"

	"github.com/dropDatabas3/rugi-auth/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
