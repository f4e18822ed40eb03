package main

import "korebuild-tools/internal/cli"

func main() {
	cli.ExecuteVersionTool()
}
