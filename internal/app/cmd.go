package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモード。引数なしの既定。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションを定期削除するワーカーモード。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は/healthを叩いて終了する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// Usage はサブコマンドの一覧。引数が不正な場合のエラーに含める。
const Usage = `usage: skillswap [command]

commands:
  serve              start the HTTP API (default)
  worker             purge expired sessions periodically
  migrate [up]       apply pending migrations
  migrate down [N]   roll back the last N migrations (default 1)
  healthcheck        check /health on SERVER_PORT`

// Invocation は解析済みのコマンドライン引数。
type Invocation struct {
	Command Command
	// RollbackSteps はmigrate downで戻す件数。0は適用（up）を表す。
	RollbackSteps int
}

// ParseArgs はos.Args[1:]を解析する。
// 未知のサブコマンドやmigrateの不正な引数はDB接続や設定読み込みの前にエラーとする。
func ParseArgs(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{Command: CommandServe}, nil
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandHealthcheck:
		return Invocation{Command: cmd}, nil
	case CommandMigrate:
		steps, err := parseMigrateArgs(args[1:])
		if err != nil {
			return Invocation{}, fmt.Errorf("%w\n\n%s", err, Usage)
		}
		return Invocation{Command: cmd, RollbackSteps: steps}, nil
	default:
		return Invocation{}, fmt.Errorf("unknown command %q\n\n%s", args[0], Usage)
	}
}

// parseMigrateArgs はmigrateサブコマンドの引数からロールバック件数を返す。
func parseMigrateArgs(args []string) (int, error) {
	if len(args) == 0 || args[0] == "up" {
		return 0, nil
	}
	if args[0] != "down" {
		return 0, fmt.Errorf("unknown migrate direction %q (want up or down)", args[0])
	}
	if len(args) < 2 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid rollback steps %q", args[1])
	}
	return n, nil
}
