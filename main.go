package main

import "github.com/meysamhadeli/kbchat/cmd"

func main() {
	cmd.Execute()
}
