// Command mcworld inspects Minecraft Bedrock world archives.
//
// Usage:
//
//	mcworld inspect [--json] [--jobs N] ARCHIVE...
//	mcworld inspect-dir DIR
//	mcworld pull REF [-o FILE]
//	mcworld push REF FILE
//
// An ARCHIVE is a path to a .mcworld file, an http(s) URL read with range
// requests, or oci://REF for a world stored in a registry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdout, os.Stderr).command().Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mcworld:", err)
		os.Exit(1)
	}
}
