// Command rosterbot runs the household duty roster Telegram bot.
//
//	rosterbot serve    # webhook + job endpoints
//	rosterbot refresh  # one auto-refresh run, for cron without HTTP
//	rosterbot remind   # one reminder run
package main

import "os"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
