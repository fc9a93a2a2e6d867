package main

import "github.com/opsdesk/storeops/cmd"

func main() {
	cmd.Execute()
}
