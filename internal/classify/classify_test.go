package classify_test

import (
	"testing"

	"github.com/CZERTAINLY/devserver/internal/classify"
	"github.com/CZERTAINLY/devserver/internal/model"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		line     string
		then     string
	}{
		{
			scenario: "clean",
			line:     "http://localhost:3000/",
			then:     "http://localhost:3000/",
		},
		{
			scenario: "clean with prefix",
			line:     "  Local:   http://localhost:5173/app?x=1",
			then:     "http://localhost:5173/app?x=1",
		},
		{
			scenario: "colors",
			line:     "\x1b[31mhttp://localhost:3000/\x1b[0m",
			then:     "http://localhost:3000/",
		},
		{
			scenario: "vite",
			line:     "  \x1b[32m➜\x1b[39m  \x1b[1mLocal\x1b[22m:   \x1b[36mhttp://127.0.0.1:\x1b[1m5173\x1b[22m/\x1b[39m",
			then:     "http://127.0.0.1:5173/",
		},
		{
			scenario: "clean with trailing word",
			line:     "http://localhost:3000/ ready",
			then:     "http://localhost:3000/ ready",
		},
		{
			scenario: "clean with space",
			line:     "http://localhost:3000/a b",
			then:     "http://localhost:3000/a b",
		},
		{
			scenario: "clean with escapes",
			line:     "http://localhost:3000/a%20b?q=%2F",
			then:     "http://localhost:3000/a%20b?q=%2F",
		},
		{
			scenario: "delete character",
			line:     "http://localhost:3000/\x7f",
			then:     "http://localhost:3000/\x7f",
		},
		{
			scenario: "carriage return",
			line:     "Local: http://127.0.0.1:8080/\r",
			then:     "http://127.0.0.1:8080/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			require.True(t, classify.HasMarker(tc.line))
			u, err := classify.URL(tc.line)
			require.NoError(t, err)
			require.Equal(t, tc.then, u.String())
		})
	}
}

func TestURL_Fail(t *testing.T) {
	t.Parallel()

	_, err := classify.URL("no url here")
	require.ErrorIs(t, err, model.ErrNoMarker)

	_, err = classify.URL("http://")
	require.ErrorIs(t, err, model.ErrInvalidURL)

	_, err = classify.URL("see http://[::1")
	require.ErrorIs(t, err, model.ErrInvalidURL)
}

func TestClean(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Local: http://x/", classify.Clean("\x1b[1mLocal\x1b[22m: http://x/\n"))
	// only one or two digits are considered a color code
	require.Equal(t, "[123m", classify.Clean("\x1b[123m"))
	require.False(t, classify.HasMarker("https://secure.example.com"))
}
