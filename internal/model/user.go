// Package model はドメインモデルを定義する。
package model

import "time"

// User はIdPで検証済みのサブジェクトIDをキーとするローカルユーザーレコードを表す。
// ログイン成功のたびに冪等にUPSERTされ、このフローから削除されることはない。
// 認可はサブジェクトIDの一致のみで行い、このレコードを認可判定に読み返すことはない。
type User struct {
	ID        string // IdPが発行するサブジェクトID（主キー）
	Email     string // IdPから取得したメールアドレス（空の場合あり）
	CreatedAt time.Time
	UpdatedAt time.Time
}
