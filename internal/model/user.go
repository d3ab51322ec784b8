package model

import (
	"encoding/json"
	"time"
)

// User はサービス利用ユーザーを表す。
// UIDは外部IdPのsubject識別子。
type User struct {
	ID        string
	UID       string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は検証済みトークンから得た外部IdPのユーザー情報を表す。
type Identity struct {
	UID   string
	Email string
	Name  string
}

// Profile はユーザーごとに1件存在する構造化された履歴書データ。
// ResumeDataは個人情報・学歴・職歴・スキル等を含むJSONオブジェクト。
type Profile struct {
	ID         string
	UserID     string
	ResumeData json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
