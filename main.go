package main

import "github.com/saadjs/nutrisync/cmd/nutrisync"

func main() {
	nutrisync.Execute()
}
