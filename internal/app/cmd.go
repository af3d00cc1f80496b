package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandSeed        Command = "seed"
	CommandReplay      Command = "replay"
	CommandHealthcheck Command = "healthcheck"
)

// commands はサブコマンドの一覧。Usageの表示順でもある。
var commands = []struct {
	cmd      Command
	args     string
	summary  string
	database bool
}{
	{CommandServe, "", "APIサーバーとスワイプWebSocketを起動する（デフォルト）", true},
	{CommandWorker, "", "フィード取り込みと古い記事の削除を定期実行する", true},
	{CommandMigrate, "", "データベースマイグレーションを適用する", true},
	{CommandSeed, "", "記事が空の場合にサンプル記事を投入する", true},
	{CommandReplay, "<script.yaml>", "ジェスチャースクリプトをBASE_URLのサーバーに対して再生する", false},
	// distroless環境でのDockerヘルスチェック用
	{CommandHealthcheck, "", "SERVER_PORTの/healthを確認する", false},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	return CommandServe
}

// NeedsDatabase はコマンドがDATABASE_URLを含むフル初期化を必要とするかを返す。
func (c Command) NeedsDatabase() bool {
	for _, e := range commands {
		if e.cmd == c {
			return e.database
		}
	}
	return true
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: newsswiper <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		name := string(c.cmd)
		if c.args != "" {
			name += " " + c.args
		}
		fmt.Fprintf(&b, "  %-26s %s\n", name, c.summary)
	}
	return b.String()
}
