// Package security はアプリケーションのセキュリティ機能を提供する。
//
// StatementSanitizerService は申込者が入力したエンドースメント文のHTMLを
// サニタイズし、公開ショーケースでのXSSから閲覧者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StatementSanitizerService はHTMLサニタイズ機能のインターフェースを定義する。
// 申込の保存前に使用される。
type StatementSanitizerService interface {
	// SanitizeStatement はエンドースメント文をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, ul, ol, li, blockquote, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeStatement(rawHTML string) string

	// SanitizePlain は全てのタグを除去したプレーンテキストを返す。
	// 見出しや組織名など、マークアップを許可しないフィールドに使用する。
	SanitizePlain(raw string) string
}

// statementSanitizer はStatementSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type statementSanitizer struct {
	statementPolicy *bluemonday.Policy
	plainPolicy     *bluemonday.Policy
}

// NewStatementSanitizer はStatementSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, blockquote, strong, em
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - リンクと画像は許可しない（申込本文に外部参照は不要）
func NewStatementSanitizer() *statementSanitizer {
	statement := bluemonday.NewPolicy()
	statement.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote",
		"strong", "em",
	)

	return &statementSanitizer{
		statementPolicy: statement,
		plainPolicy:     bluemonday.StrictPolicy(),
	}
}

// SanitizeStatement はエンドースメント文をサニタイズして安全なHTMLを返す。
func (s *statementSanitizer) SanitizeStatement(rawHTML string) string {
	return strings.TrimSpace(s.statementPolicy.Sanitize(rawHTML))
}

// SanitizePlain は全てのタグを除去したプレーンテキストを返す。
func (s *statementSanitizer) SanitizePlain(raw string) string {
	return strings.TrimSpace(s.plainPolicy.Sanitize(raw))
}
