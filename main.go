package main

import (
	"github.com/sidkik/treeaudit/cmd"
	"github.com/sidkik/treeaudit/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
