package main

import (
	"github.com/JFDuval/flexsea-v2/pkg/cli/sh"
	"github.com/JFDuval/flexsea-v2/pkg/config"

	_ "github.com/JFDuval/flexsea-v2/pkg/cli/cmds/all"
)

func init() {
	config.SetupFlags()
}

func main() {
	sh.Main()
}
