// Package main is the entry point for the planora server.
package main

func main() {
	Execute()
}
