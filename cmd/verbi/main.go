// Command verbi is a voice assistant that chains speech transcription,
// response generation and speech synthesis across cloud and local providers.
package main

import (
	"fmt"
	"os"

	"github.com/MrWong99/verbi/cmd/verbi/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
