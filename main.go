package main

import "github.com/clpstructured/clps/cmd"

func main() {
	cmd.Execute()
}
