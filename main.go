package main

import "github.com/Seann-Moser/pwmblock/cmd"

func main() {
	cmd.Execute()
}
