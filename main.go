package main

import "github.com/user/zte-adk/cmd"

func main() {
	cmd.Execute()
}
