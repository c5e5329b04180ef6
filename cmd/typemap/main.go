// Package main is the entry point for the typemap CLI.
package main

func main() {
	Execute()
}
