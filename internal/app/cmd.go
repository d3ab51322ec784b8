package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandIngest は設定された検索条件で外部求人を1回取り込んで終了する。
	CommandIngest Command = "ingest"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。Dockerのヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// ErrUnknownCommand はサポート外のサブコマンドが指定されたことを表す。
var ErrUnknownCommand = errors.New("unknown command")

var commandDescriptions = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "APIサーバーを起動する（既定）"},
	{CommandMigrate, "データベースマイグレーションを適用する"},
	{CommandIngest, "INGEST_QUERIESの条件で外部求人を取り込む"},
	{CommandHealthcheck, "起動中のサーバーの/healthを確認する"},
	{CommandHelp, "この使い方を表示する"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。2つ目以降の引数は無視する。
// 打ち間違いでサーバーが起動しないよう、未知のコマンドはErrUnknownCommandとする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch arg := strings.TrimSpace(args[0]); arg {
	case "serve":
		return CommandServe, nil
	case "migrate":
		return CommandMigrate, nil
	case "ingest":
		return CommandIngest, nil
	case "healthcheck":
		return CommandHealthcheck, nil
	case "help", "-h", "-help", "--help":
		return CommandHelp, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, arg)
	}
}

// Usage はCLIの使い方を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("使い方: jobtrail [command]\n\nコマンド:\n")
	for _, c := range commandDescriptions {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.desc)
	}
	return b.String()
}
