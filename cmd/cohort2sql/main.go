package main

import (
	"cohort2sql-go/internal/cli"
)

func main() {
	cli.Execute()
}
