package model

import "time"

// Resume はアップロードされた履歴書ファイルのメタデータ。
// 本体はオブジェクトストレージにあり、レコードはその索引である。
type Resume struct {
	ID          string
	UserID      string
	Label       string
	FileName    string
	FilePath    string
	FileSize    int64
	ContentType string
	CreatedAt   time.Time
}

// TailoredResume は特定の求人向けに調整した履歴書ファイルのメタデータ。
type TailoredResume struct {
	ID          string
	UserID      string
	JobID       *int64
	Label       string
	FileName    string
	FilePath    string
	FileSize    int64
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
