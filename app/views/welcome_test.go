package views

import (
	"context"
	"html"
	"strings"
	"testing"

	"github.com/amirphl/tally/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, page dto.PageModel) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, Welcome(page).Render(context.Background(), &b))
	return b.String()
}

func TestWelcomeRendersCount(t *testing.T) {
	got := render(t, dto.PageModel{Component: "welcome", Props: dto.WelcomeProps{Count: 42}, URL: "/"})

	assert.Contains(t, got, `<output id="count">42</output>`)
	assert.Contains(t, got, `<form method="post" action="/counter">`)
	assert.Contains(t, got, "<title>Tally</title>")
}

func TestWelcomeEmbedsEscapedPageModel(t *testing.T) {
	got := render(t, dto.PageModel{Component: "welcome", Props: dto.WelcomeProps{Count: 7}, URL: "/?a=<b>", Version: "1.0.0"})

	start := strings.Index(got, `data-page="`)
	require.NotEqual(t, -1, start)
	rest := got[start+len(`data-page="`):]
	end := strings.Index(rest, `"`)
	require.NotEqual(t, -1, end)

	attr := rest[:end]
	assert.NotContains(t, attr, "<b>")
	assert.JSONEq(t,
		`{"component":"welcome","props":{"count":7},"url":"/?a=<b>","version":"1.0.0"}`,
		html.UnescapeString(attr))
}
