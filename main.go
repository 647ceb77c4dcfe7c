package main

import (
	"os"

	zlog "github.com/semihalev/zlog/v2"

	"github.com/blockdns/rbld/cmd"
)

var buildVersion = "dev"

func main() {
	cmd.BuildVersion = buildVersion

	if err := cmd.Root().Execute(); err != nil {
		zlog.Error("rbld exited with error", "error", err.Error())
		os.Exit(1)
	}
}
