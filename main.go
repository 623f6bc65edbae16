package main

import "github.com/larkspur-bio/tfrank/cmd"

func main() {
	cmd.Execute()
}
