// postctl is a small CLI for talking to a running micro-post server: read
// the feed, look up profiles, and create posts.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
