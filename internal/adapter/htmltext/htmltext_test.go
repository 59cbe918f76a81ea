package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToText_Paragraphs(t *testing.T) {
	in := `<h1>VPN</h1><p>Install the   client.</p><p>Sign in with SSO &amp; MFA.</p>`
	assert.Equal(t, "VPN\n\nInstall the client.\n\nSign in with SSO & MFA.", ToText(in))
}

func TestToText_ListsAndTables(t *testing.T) {
	in := `<ul><li>one</li><li>two</li></ul><table><tr><td>a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table>`
	assert.Equal(t, "one\ntwo\n\na b\nc d", ToText(in))
}

func TestToText_StorageFormat(t *testing.T) {
	in := `<p>Run:</p><ac:structured-macro ac:name="code"><ac:plain-text-body><![CDATA[make install]]></ac:plain-text-body></ac:structured-macro><!-- hidden --><script>alert(1)</script>`
	assert.Equal(t, "Run:\n\nmake install", ToText(in))
}

func TestToText_Empty(t *testing.T) {
	assert.Equal(t, "", ToText(""))
	assert.Equal(t, "", ToText("<p> </p><br/>"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Help &", Title("<html><head><title> Help &amp; </title></head></html>"))
	assert.Equal(t, "", Title("<p>no title</p>"))
}
