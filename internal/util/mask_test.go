package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"ana.lopez@example.com":  "a***@e***.com",
		" Bob@Mail.Example.org ": "b***@m***.example.org",
		"jo@x.io":                "***@***.io",
		"not-an-email":           "n***",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}
