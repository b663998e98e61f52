package main

import "github.com/gameshelf/apiserver/cmd"

func main() {
	cmd.Execute()
}
