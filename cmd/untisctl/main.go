// Command untisctl queries WebUntis timetables from the command line and
// serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if rt != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if cerr := rt.Close(closeCtx); cerr != nil && err == nil {
			err = cerr
		}
		cancel()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
