package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, fragment string) *goquery.Document {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	require.NoError(t, err)
	return d
}

func TestCleanText(t *testing.T) {
	d := doc(t, "<div>  <span>Topics in</span> <b>Computer Science</b>​  </div>")
	require.Equal(t, "Topics in Computer Science", CleanText(d.Find("div")))
}

func TestGetOptions(t *testing.T) {
	d := doc(t, `<select name="dept">
		<option>no value attribute</option>
		<option value="C S"> Computer Science </option>
		<option value="E">English</option>
	</select>`)

	options := GetOptions(d.Find(`select[name="dept"]`))
	require.Equal(t, []Option{
		{Value: "C S", Label: "Computer Science"},
		{Value: "E", Label: "English"},
	}, options)
}

func TestHiddenInputs(t *testing.T) {
	d := doc(t, `<form name="next_page">
		<input type="hidden" name="search_cookie" value="abc123">
		<input type="hidden" value="nameless">
		<input type="text" name="visible" value="skipped">
	</form>`)

	require.Equal(t, map[string]string{"search_cookie": "abc123"},
		HiddenInputs(d.Find(`form[name="next_page"]`)))
}
