// Command skillswap はスキル交換マーケットプレイスのAPIサーバー、ワーカー、
// マイグレーションを起動する単一バイナリ。
//
//	skillswap [serve|worker|migrate [up|down [N]]|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/skillswap/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "skillswap: %v\n", err)
		os.Exit(1)
	}
}
