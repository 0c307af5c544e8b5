package main

import "github.com/nethalo/dbdump/cmd"

func main() {
	cmd.Execute()
}
