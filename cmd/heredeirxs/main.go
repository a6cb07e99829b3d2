// Command heredeirxs はファンアプリのBFFサーバーとバックグラウンドワーカーを起動する。
//
// 使い方:
//
//	heredeirxs [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/heredeirxs/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "heredeirxs: %v\n", err)
		os.Exit(1)
	}
}
