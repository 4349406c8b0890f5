// Command mediactl administers a running media bot through its local API.
package main

func main() {
	Execute()
}
