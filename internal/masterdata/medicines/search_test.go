package medicines

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldName(t *testing.T) {
	cases := map[string]string{
		"Paracétamol":      "paracetamol",
		"  Ibuprofen 400 ": "ibuprofen 400",
		"Amoxicilín":       "amoxicilin",
		"Thuốc ho":         "thuoc ho",
		"":                 "",
	}
	for input, want := range cases {
		require.Equal(t, want, FoldName(input), "input %q", input)
	}
}

func TestFoldNameIdempotent(t *testing.T) {
	folded := FoldName("Paracétamol Forte")
	require.Equal(t, folded, FoldName(folded))
}
