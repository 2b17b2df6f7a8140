package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sesame-bridge/internal/logic"
	"github.com/sweeney/sesame-bridge/internal/status"
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
	"lockState": func(st logic.LockStatus) string {
		switch {
		case st.Locked:
			return "LOCKED"
		case st.Unlocked:
			return "UNLOCKED"
		default:
			return "UNKNOWN"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Device}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.locked { color: green; font-weight: bold; }
.unlocked { color: #c60; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Config.Device}}</h1>

<h2>Lock</h2>
<table>
<tr><th>Session</th><td id="session">{{.State.Session}}{{if and .Active (not .State.SessionConfirmed)}} (unconfirmed){{end}}</td></tr>
{{if .Active}}{{$ls := lockState .State.Status}}<tr><th>State</th><td id="lock-state" class="{{if eq $ls "LOCKED"}}locked{{else if eq $ls "UNLOCKED"}}unlocked{{else}}unknown{{end}}">{{$ls}}</td></tr>
<tr><th>Position</th><td>{{.State.Status.Position}}</td></tr>
<tr><th>Battery</th><td>{{printf "%.0f" .State.Status.BatteryPct}}% ({{printf "%.2f" .State.Status.Voltage}}V)</td></tr>{{end}}
<tr><th>Address</th><td>{{.Config.Address}} ({{.Config.Model}})</td></tr>
<tr><th>Auto-test</th><td>{{if .State.AutoTest.Completed}}done{{else if .State.AutoTest.Armed}}armed{{else}}idle{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Network</th><td class="{{if .LinkUp}}connected{{else}}disconnected{{end}}">{{.State.Link}}</td></tr>
<tr><th>MQTT</th><td class="{{if .BrokerUp}}connected{{else}}disconnected{{end}}">{{.State.Broker}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Command topic</th><td>{{.Config.CommandTopic}}</td></tr>
</table>

<h2>Radio</h2>
<table>
<tr><th>Receiver</th><td>{{if .Config.RadioEnabled}}GPIO {{.Config.RadioPin}}{{else}}disabled{{end}}</td></tr>
<tr><th>Signals</th><td>{{.State.Counters.SignalsAccepted}} accepted, {{.State.Counters.SignalsDropped}} dropped</td></tr>
{{with .LastEvent}}<tr><th>Last signal</th><td>{{.At.UTC.Format "2006-01-02T15:04:05Z"}} {{.Action}} ({{.Result}})</td></tr>{{end}}
</table>

<h2>Commands</h2>
<table>
<tr><th>Executed</th><td>{{.State.Counters.CommandsExecuted}}</td></tr>
<tr><th>Rejected</th><td>{{.State.Counters.CommandsRejected}}</td></tr>
<tr><th>Session attempts</th><td>{{.State.Counters.SessionAttempts}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{if .Config.Version}}<tr><th>Version</th><td>{{.Config.Version}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Active   bool
		LinkUp   bool
		BrokerUp bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Active:   snap.State.Session == logic.SessionActive,
		LinkUp:   snap.State.Link == logic.LinkConnected,
		BrokerUp: snap.State.Broker == logic.BrokerConnected,
	}
	indexTmpl.Execute(w, data)
}
