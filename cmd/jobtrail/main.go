// Command jobtrail は求人応募トラッカーのAPIサーバーと運用コマンドを提供する。
//
// 使い方:
//
//	jobtrail [serve|migrate|ingest|healthcheck|help]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/jobtrail/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "jobtrail: %v\n", err)
		os.Exit(1)
	}
}
