package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

var (
	// ErrDuplicate は一意制約違反を表す。
	ErrDuplicate = errors.New("repository: duplicate record")

	// ErrReferenceNotFound は外部キーの参照先が存在しないことを表す。
	ErrReferenceNotFound = errors.New("repository: referenced record not found")

	// ErrReferenceMismatch は参照先は存在するが、呼び出し側が指定した値と一致しないことを表す。
	ErrReferenceMismatch = errors.New("repository: referenced record does not match")
)

// mapPQError はlib/pqのエラーコードを番兵エラーに変換する。
// 対象外のエラーはそのまま返す。
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgerrcode.UniqueViolation:
		return errors.Join(ErrDuplicate, err)
	case pgerrcode.ForeignKeyViolation:
		return errors.Join(ErrReferenceNotFound, err)
	default:
		return err
	}
}

// isInvalidText は不正な入力値（UUID形式でないID等）によるエラーかを判定する。
func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.InvalidTextRepresentation
}

// isInvalidRow は行の値そのものが原因のエラー（長すぎる文字列、CHECK制約違反等）かを判定する。
// 接続断など行と無関係なエラーはfalseを返す。
func isInvalidRow(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pgerrcode.IsDataException(string(pqErr.Code)) ||
		string(pqErr.Code) == pgerrcode.CheckViolation ||
		string(pqErr.Code) == pgerrcode.NotNullViolation
}

// nullStringValue はsql.NullStringの値を返す。NULLの場合は空文字列。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullString は空文字列をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
