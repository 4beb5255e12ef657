package main

import "github.com/fanpulse/livewire/cmd/livewire/cmd"

func main() {
	cmd.Execute()
}
