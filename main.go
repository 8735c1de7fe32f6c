package main

import "go-firestore-sentiment/cmd"

func main() {
	cmd.Execute()
}
