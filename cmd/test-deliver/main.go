// Command test-deliver is a manual test for text delivery.
// It waits 3 seconds, then delivers test text with the chosen method.
// Focus a text editor before the countdown finishes when using paste or type.
//
// Usage:
//
//	go run ./cmd/test-deliver [--method clipboard|paste|type] [text]
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/voxtype/voxtype/internal/deliver"
)

func main() {
	method := flag.String("method", "clipboard", "delivery method: clipboard, paste, or type")
	flag.Parse()

	text := "Hello from voxtype!"
	if flag.NArg() > 0 {
		text = flag.Arg(0)
	}

	sink, err := deliver.New(*method)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Will deliver %q using %q method in 3 seconds...\n", text, *method)
	if *method != "clipboard" {
		fmt.Println("Focus a text editor now!")
	}

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	if err := sink.DeliverText(text); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nDone!")
}
