package main

import "bondedlink/cmd/linkctl/cmd"

func main() {
	cmd.Execute()
}
