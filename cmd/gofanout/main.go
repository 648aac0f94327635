package main

import "github.com/dbsmedya/gofanout/cmd/gofanout/cmd"

func main() {
	cmd.Execute()
}
