// Package views renders page models to HTML
package views

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/amirphl/tally/app/dto"
)

// AppName is shown in the document title and heading
const AppName = "Tally"

// Welcome renders the welcome page. The page model is embedded in the
// data-page attribute so a client-side app can boot from it; the form
// keeps incrementing usable without JavaScript.
func Welcome(page dto.PageModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pageJSON, err := json.Marshal(page)
		if err != nil {
			return fmt.Errorf("encode page model: %w", err)
		}

		count := strconv.FormatInt(page.Props.Count, 10)
		chunks := []string{
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`, templ.EscapeString(AppName), `</title></head><body>`,
			`<div id="app" data-page="`, templ.EscapeString(string(pageJSON)), `">`,
			`<main><h1>`, templ.EscapeString(AppName), `</h1>`,
			`<p>Count: <output id="count">`, templ.EscapeString(count), `</output></p>`,
			`<form method="post" action="/counter"><button type="submit">Increment</button></form>`,
			`</main></div></body></html>`,
		}
		for _, chunk := range chunks {
			if _, err := io.WriteString(w, chunk); err != nil {
				return err
			}
		}
		return nil
	})
}
