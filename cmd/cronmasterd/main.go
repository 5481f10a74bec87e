// Command cronmasterd runs the CronMaster scheduler: a cron/webhook
// dispatcher that fires HTTP requests against a tenant's registered jobs
// on schedule, records every outcome, and reconciles its in-memory live
// set against the durable job table.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
