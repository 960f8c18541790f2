package html

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const chartJSURL = "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"

// Layout wraps body in the page shell shared by every screen.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+templ.EscapeString(title)+`</title>`+
			`<link rel="stylesheet" href="/assets/app.css">`+
			`<script src="`+chartJSURL+`" defer></script>`+
			`<script src="/assets/dashboard.js" defer></script>`+
			`</head><body>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, CSRFFormScript()+`</body></html>`)
		return err
	})
}
