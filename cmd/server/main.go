package main

import "github.com/Diddie029/Retail-Base-point-of-sale-sub018/internal/cli"

func main() {
	cli.Execute()
}
