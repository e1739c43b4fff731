// cmd/dispatcher/main.go
package main

func main() {
	Execute()
}
