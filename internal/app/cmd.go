package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は認証APIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandPruneSessions は期限切れセッションを1回削除して終了することを示す。
	CommandPruneSessions Command = "prune-sessions"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandMigrate, CommandPruneSessions, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}
