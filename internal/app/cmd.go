package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はBFFサーバー（ページ・API・認証）を起動する。
	CommandServe Command = "serve"
	// CommandWorker はニュース取得・カウントダウン・天気予報の先読みとクリーンアップを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンドの一覧。Usageの表示順を兼ねる。
var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}

// ErrUnknownCommand はサポート外のサブコマンドが指定された場合に返される。
var ErrUnknownCommand = errors.New("unknown command")

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "usage: heredeirxs [" + strings.Join(names, "|") + "]"
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q; %s", ErrUnknownCommand, args[0], Usage())
}
