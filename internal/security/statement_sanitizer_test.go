package security

import (
	"strings"
	"testing"
)

func TestSanitizeStatement_AllowsBasicFormatting(t *testing.T) {
	s := NewStatementSanitizer()

	input := "<p>We support <strong>education</strong> and <em>innovation</em>.</p>"
	got := s.SanitizeStatement(input)

	if got != input {
		t.Errorf("SanitizeStatement() = %q, want %q", got, input)
	}
}

func TestSanitizeStatement_RemovesScriptTags(t *testing.T) {
	s := NewStatementSanitizer()

	got := s.SanitizeStatement(`<p>hello</p><script>alert("xss")</script>`)

	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Errorf("script content should be removed, got %q", got)
	}
	if !strings.Contains(got, "<p>hello</p>") {
		t.Errorf("safe content should be preserved, got %q", got)
	}
}

func TestSanitizeStatement_RemovesEventAttributes(t *testing.T) {
	s := NewStatementSanitizer()

	got := s.SanitizeStatement(`<p onclick="steal()">text</p>`)

	if strings.Contains(got, "onclick") {
		t.Errorf("on* attributes should be removed, got %q", got)
	}
}

func TestSanitizeStatement_RemovesLinksAndImages(t *testing.T) {
	s := NewStatementSanitizer()

	got := s.SanitizeStatement(`<p>see <a href="https://evil.example">here</a> <img src="https://evil.example/x.png"></p>`)

	if strings.Contains(got, "<a") || strings.Contains(got, "<img") {
		t.Errorf("links and images should be removed, got %q", got)
	}
}

func TestSanitizeStatement_EmptyInput(t *testing.T) {
	s := NewStatementSanitizer()

	if got := s.SanitizeStatement(""); got != "" {
		t.Errorf("SanitizeStatement(\"\") = %q, want \"\"", got)
	}
}

// 同一入力に対して常に同一出力を返す（冪等）ことを検証
func TestSanitizeStatement_Idempotent(t *testing.T) {
	s := NewStatementSanitizer()

	input := `<p>text</p><script>x</script><ul><li>a</li></ul>`
	once := s.SanitizeStatement(input)
	twice := s.SanitizeStatement(once)

	if once != twice {
		t.Errorf("sanitize should be idempotent: %q != %q", once, twice)
	}
}

func TestSanitizePlain_StripsAllTags(t *testing.T) {
	s := NewStatementSanitizer()

	got := s.SanitizePlain(`<b>Bold</b> Organization <script>x</script>`)

	if strings.Contains(got, "<") {
		t.Errorf("all tags should be stripped, got %q", got)
	}
	if !strings.Contains(got, "Bold") || !strings.Contains(got, "Organization") {
		t.Errorf("text content should be preserved, got %q", got)
	}
}

func TestSanitizePlain_TrimsWhitespace(t *testing.T) {
	s := NewStatementSanitizer()

	if got := s.SanitizePlain("  NESA Partner  "); got != "NESA Partner" {
		t.Errorf("SanitizePlain() = %q, want %q", got, "NESA Partner")
	}
}
