// Package main provides the entry point for the pricewatch CLI.
package main

func main() {
	Execute()
}
