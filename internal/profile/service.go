// Package profile はユーザーごとの構造化履歴書データ（プロフィール）を管理する。
package profile

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hitoshi/jobtrail/internal/export"
	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed resume.html.tmpl
var resumeTemplateText string

var (
	resumeSchema   = mustLoadSchema()
	resumeTemplate = template.Must(template.New("resume").Funcs(template.FuncMap{
		"join": func(items []string) string { return strings.Join(items, ", ") },
	}).Parse(resumeTemplateText))
)

func mustLoadSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid resume schema: %v", err))
	}
	return s
}

// UserResolver はIdPのsubject識別子から内部ユーザーIDを解決する。
type UserResolver interface {
	ResolveID(ctx context.Context, uid string) (string, error)
}

// Exporter はHTMLからドキュメントを生成する。
type Exporter interface {
	Generate(ctx context.Context, req export.Request) (*export.Document, error)
}

// Service はプロフィールのサービス層。
type Service struct {
	users    UserResolver
	repo     repository.ProfileRepository
	exporter Exporter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users UserResolver, repo repository.ProfileRepository, exporter Exporter) *Service {
	return &Service{
		users:    users,
		repo:     repo,
		exporter: exporter,
	}
}

// Get はユーザーのプロフィールを返す。
// ユーザーが存在しない場合はUSER_NOT_FOUND、プロフィール未作成の場合はPROFILE_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, uid string) (*model.Profile, error) {
	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return p, nil
}

// Save はプロフィールを作成または上書きする。ユーザーごとに1件のみ保持し、最後に保存した内容が残る。
func (s *Service) Save(ctx context.Context, uid string, data json.RawMessage) (*model.Profile, error) {
	data = bytes.TrimSpace(data)
	if err := Validate(data); err != nil {
		return nil, err
	}

	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.Upsert(ctx, userID, data)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return p, nil
}

// Export は保存済みプロフィールをHTMLに描画し、指定形式のドキュメントを生成する。
// 未対応の形式の場合はプロフィールを読まずにexport.ErrUnsupportedFormatを返す。
func (s *Service) Export(ctx context.Context, uid, format string) (*export.Document, error) {
	if _, err := export.ParseFormat(format); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	html, err := RenderHTML(p.ResumeData)
	if err != nil {
		return nil, err
	}

	return s.exporter.Generate(ctx, export.Request{
		Format:   format,
		FileName: "resume",
		HTML:     html,
	})
}

// Validate はresume_dataがJSONオブジェクトでありスキーマに適合することを検証する。
func Validate(data json.RawMessage) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return model.NewValidationError("resume_dataはJSONオブジェクトで指定してください")
	}

	result, err := resumeSchema.Validate(gojsonschema.NewBytesLoader(trimmed))
	if err != nil {
		return model.NewValidationError(err.Error())
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return model.NewValidationError(strings.Join(msgs, "; "))
}

// resumeView はテンプレート描画用に復元したresume_data。
type resumeView struct {
	PersonalInfo struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Location string `json:"location"`
		LinkedIn string `json:"linkedin"`
		GitHub   string `json:"github"`
		Website  string `json:"website"`
	} `json:"personalInfo"`
	Summary        string `json:"summary"`
	WorkExperience []struct {
		Company     string   `json:"company"`
		Position    string   `json:"position"`
		Location    string   `json:"location"`
		StartDate   string   `json:"startDate"`
		EndDate     string   `json:"endDate"`
		Current     bool     `json:"current"`
		Description string   `json:"description"`
		Highlights  []string `json:"highlights"`
	} `json:"workExperience"`
	Education []struct {
		Institution string `json:"institution"`
		Degree      string `json:"degree"`
		Field       string `json:"field"`
		StartDate   string `json:"startDate"`
		EndDate     string `json:"endDate"`
		Description string `json:"description"`
	} `json:"education"`
	Skills       map[string][]string `json:"skills"`
	Achievements []string            `json:"achievements"`
	Languages    []struct {
		Language    string `json:"language"`
		Proficiency string `json:"proficiency"`
	} `json:"languages"`
	Publications []struct {
		Title     string `json:"title"`
		Publisher string `json:"publisher"`
		Date      string `json:"date"`
		URL       string `json:"url"`
	} `json:"publications"`
}

// RenderHTML はresume_dataを最上位が<b>見出しと<p>段落からなるHTMLに描画する。
func RenderHTML(data json.RawMessage) (string, error) {
	var view resumeView
	if err := json.Unmarshal(data, &view); err != nil {
		return "", fmt.Errorf("プロフィールの読み込みに失敗しました: %w", err)
	}

	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("プロフィールの描画に失敗しました: %w", err)
	}
	return buf.String(), nil
}
