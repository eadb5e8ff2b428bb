package main

import "account-portal/internal/cli"

func main() {
	cli.Execute()
}
