package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_KeepsRendererMarkup(t *testing.T) {
	d := docOf(
		textBlock("a", Unstyled, "red", StyleRange{Offset: 0, Length: 3, Style: "COLOR_EF4444"}, StyleRange{Offset: 0, Length: 3, Style: Bold}),
		textBlock("b", Blockquote, "quote"),
		textBlock("c", UnorderedListItem, "item"),
		imageBlock("d", 0),
	)
	d.EntityMap[0] = NewImageEntity("data:image/jpeg;base64,/9j/4AAQ")

	got := RenderSafe(Serialize(d))
	assert.Contains(t, got, "<span")
	assert.Contains(t, got, "#EF4444")
	assert.Contains(t, got, "<strong>red</strong>")
	assert.Contains(t, got, "<blockquote")
	assert.Contains(t, got, "<li>item</li>")
	assert.Contains(t, got, "<figure")
	assert.Contains(t, got, `src="data:image/jpeg;base64,/9j/4AAQ"`)
}

func TestSanitize_StripsScripts(t *testing.T) {
	got := Sanitize(`<p onclick="x()">a</p><script>alert(1)</script><span style="position:fixed">b</span>`)
	assert.NotContains(t, got, "onclick")
	assert.NotContains(t, got, "script")
	assert.NotContains(t, got, "position")
	assert.Contains(t, got, "<p>a</p>")
}

func TestSanitize_DropsScriptImageSource(t *testing.T) {
	d := docOf(imageBlock("a", 0))
	d.EntityMap[0] = NewImageEntity("javascript:alert(1)")
	assert.NotContains(t, RenderSafe(Serialize(d)), "javascript")
}
