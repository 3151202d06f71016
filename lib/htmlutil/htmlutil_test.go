package htmlutil

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/stretchr/testify/require"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		`<div><span>Der Report</span> <b>1984</b></div>`,
	))
	require.NoError(t, err)
	require.Equal(t, "Der Report 1984", CleanText(GetText(doc)))
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		in     string
		expect string
	}{
		{"  1984 – George Orwell  ", "1984 – George Orwell"},
		{"foo\n\t bar", "foo bar"},
		{"", ""},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, CleanText(test.in))
	}
}
