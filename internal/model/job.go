package model

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// JobType は求人の雇用形態を表す。
type JobType string

const (
	// JobTypeFullTime はフルタイム求人。
	JobTypeFullTime JobType = "full-time"
	// JobTypeContract は契約求人。
	JobTypeContract JobType = "contract"
	// JobTypeManual はユーザーが手動登録した求人。
	JobTypeManual JobType = "manual"
)

// PlatformManual は手動登録求人のplatform_name。
const PlatformManual = "manual"

// Job は求人情報を表す。
// (PlatformName, ExternalJobID) が求人ソース内での同一性を表し、
// IDは初回永続化時に採番される。is_active以外は作成後に変更しない。
type Job struct {
	ID            int64
	ExternalJobID string
	Title         string
	Company       string
	Location      string
	JobType       JobType
	PostedAt      *time.Time
	Description   string
	PlatformName  string
	Link          string
	IsActive      bool
	CreatedAt     time.Time
}

// JobFilter は求人検索・取得の条件を表す。
type JobFilter struct {
	SearchText string
	JobType    string
	Location   string
	DatePosted string
}

// datePostedDays は掲載日フィルタの選択肢と日数の対応。
var datePostedDays = map[string]int{
	"Past 24 hours": 1,
	"Last 3 days":   3,
	"Last week":     7,
	"Last month":    30,
}

// DatePostedDays は掲載日フィルタの値を日数に変換する。
// 空文字列または未知の値の場合はokがfalseになる（絞り込みなし）。
func DatePostedDays(datePosted string) (days int, ok bool) {
	days, ok = datePostedDays[strings.TrimSpace(datePosted)]
	return days, ok
}

// DatePostedCutoff は掲載日フィルタから下限日時を計算する。
// 絞り込みがない場合はnilを返す。
func DatePostedCutoff(datePosted string, now time.Time) *time.Time {
	days, ok := DatePostedDays(datePosted)
	if !ok {
		return nil
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &cutoff
}

var whitespaceRun = regexp.MustCompile(`\s+`)

const (
	// MaxExternalJobIDLength はjobs.external_job_idに保存できる最大長。
	MaxExternalJobIDLength = 512
	// MaxPlatformNameLength はjobs.platform_nameに保存できる最大長。
	MaxPlatformNameLength = 50
)

// BoundExternalID は長すぎる外部IDを "sha256-" 付きのハッシュに置き換える。
// 上限以下のIDはそのまま返すため、既存の行との同一性は変わらない。
func BoundExternalID(id string) string {
	if len(id) <= MaxExternalJobIDLength {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return "sha256-" + hex.EncodeToString(sum[:])
}

// SynthesizeExternalID はソースが安定したIDを提供しない場合の代替IDを生成する。
// 会社名・タイトル・作成日時を連結し、小文字化して空白を "-" に畳み込む。
// 衝突しないことは保証されない近似的な同一性である。長すぎる場合はBoundExternalIDで短縮する。
func SynthesizeExternalID(company, title string, created time.Time) string {
	parts := []string{strings.TrimSpace(company), strings.TrimSpace(title)}
	if !created.IsZero() {
		parts = append(parts, created.UTC().Format(time.RFC3339))
	}
	joined := strings.ToLower(strings.Join(parts, "-"))
	return BoundExternalID(whitespaceRun.ReplaceAllString(joined, "-"))
}

// JobKey は (platform_name, external_job_id) の組を一意キー文字列にする。
func JobKey(j Job) string {
	return j.PlatformName + "\x00" + j.ExternalJobID
}
