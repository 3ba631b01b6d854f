package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/ambient-theme/internal/light"
	"github.com/sweeney/ambient-theme/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if gt .Config.RefreshSeconds 0}}<meta http-equiv="refresh" content="{{.Config.RefreshSeconds}}">
{{end}}<title>Ambient Theme</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; background: {{.Palette.Background}}; color: {{.Palette.Foreground}}; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #888; }
th { width: 40%; }
a { color: inherit; }
</style>
</head>
<body class="theme-{{.Theme}}">
<h1>Current ambient light level:</h1>
<p id="reading">{{.Reading}}</p>
<pre><code id="state">{{.ClientState}}</code></pre>

<h2>Sensor</h2>
<table>
<tr><th>Status</th><td>{{.State.Status}}</td></tr>
<tr><th>Theme</th><td>{{.Theme}}</td></tr>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
<tr><th>Errors</th><td>{{.Counts.Errors}}</td></tr>
<tr><th>Last reading</th><td>{{if .LastReading.IsZero}}never{{else}}{{.LastReading.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Sensor</th><td>{{.Config.Sensor}}{{if .Config.Source}} ({{.Config.Source}}){{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Refresh</th><td>{{if eq .Config.RefreshSeconds 0}}disabled{{else}}{{.Config.RefreshSeconds}}s{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime      time.Duration
		Reading     string
		Palette     light.Palette
		ClientState string
	}{
		Snapshot:    snap,
		Uptime:      snap.Uptime(),
		Reading:     snap.State.Reading.String(),
		Palette:     snap.Palette(),
		ClientState: string(status.FormatClientState(snap)),
	}
	indexTmpl.Execute(w, data)
}
