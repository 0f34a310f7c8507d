package main

import "rolesync/cmd/rolectl/cmd"

func main() {
	cmd.Execute()
}
