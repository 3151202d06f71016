package report

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"momox-agent/lib/timezone"
	"momox-agent/services/scan"

	"github.com/shopspring/decimal"
)

// Report is the rendered daily report, ready for delivery. both
// bodies are pure functions of the outcomes and the baseline.
type Report struct {
	Subject string
	Text    string
	Html    string
}

// FormatPrice renders a decimal the way the shop displays money.
func FormatPrice(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + " €"
}

type row struct {
	Isbn   string
	Title  string
	Price  string
	Change string
	Url    string
	Err    string
}

type reportData struct {
	Date         string
	Total        int
	Available    []row
	NotAvailable []row
	Errors       []row
	GeneratedAt  string
}

func buildData(outcomes []scan.Outcome, history scan.History, now time.Time) reportData {
	data := reportData{
		Date:        now.In(timezone.Location).Format("Monday, 02 January 2006"),
		Total:       len(outcomes),
		GeneratedAt: now.In(timezone.Location).Format("2006-01-02 15:04:05"),
	}
	for _, o := range outcomes {
		r := row{
			Isbn:   o.Isbn,
			Title:  o.Title,
			Change: Detect(o, history).String(),
			Url:    o.Url,
			Err:    o.Err,
		}
		switch o.Availability {
		case scan.AvailabilityBuyable:
			r.Price = FormatPrice(o.Price)
			data.Available = append(data.Available, r)
		case scan.AvailabilityNotBuyable:
			data.NotAvailable = append(data.NotAvailable, r)
		default:
			data.Errors = append(data.Errors, r)
		}
	}
	return data
}

// Build renders the daily report from this run's outcomes and the
// previous baseline.
func Build(outcomes []scan.Outcome, history scan.History, now time.Time) (Report, error) {
	data := buildData(outcomes, history, now)

	html := &strings.Builder{}
	err := htmlReport.Execute(html, data)
	if err != nil {
		return Report{}, fmt.Errorf("render html report: %w", err)
	}

	return Report{
		Subject: fmt.Sprintf("Momox ISBN Report — %s", timezone.DayKey(now)),
		Text:    textReport(data),
		Html:    html.String(),
	}, nil
}

func textReport(data reportData) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Momox ISBN Daily Report — %s\n", data.Date)
	fmt.Fprintln(b, strings.Repeat("=", 50))
	fmt.Fprintf(b, "Total scanned: %d\n", data.Total)
	fmt.Fprintf(b, "Available for sale: %d\n", len(data.Available))
	fmt.Fprintf(b, "Not available: %d\n", len(data.NotAvailable))
	fmt.Fprintf(b, "Errors: %d\n\n", len(data.Errors))

	if len(data.Available) > 0 {
		fmt.Fprintln(b, "AVAILABLE FOR SALE")
		fmt.Fprintln(b, strings.Repeat("-", 30))
		for _, r := range data.Available {
			fmt.Fprintf(b, "  %s | %s | %s", r.Isbn, r.Title, r.Price)
			if r.Change != "" {
				fmt.Fprintf(b, " [%s]", r.Change)
			}
			fmt.Fprintln(b)
			if r.Url != "" {
				fmt.Fprintf(b, "  -> %s\n", r.Url)
			}
		}
		fmt.Fprintln(b)
	}

	if len(data.NotAvailable) > 0 {
		fmt.Fprintln(b, "NOT AVAILABLE")
		fmt.Fprintln(b, strings.Repeat("-", 30))
		for _, r := range data.NotAvailable {
			fmt.Fprintf(b, "  %s | %s", r.Isbn, r.Title)
			if r.Change != "" {
				fmt.Fprintf(b, " [%s]", r.Change)
			}
			fmt.Fprintln(b)
		}
		fmt.Fprintln(b)
	}

	if len(data.Errors) > 0 {
		fmt.Fprintln(b, "ERRORS")
		fmt.Fprintln(b, strings.Repeat("-", 30))
		for _, r := range data.Errors {
			fmt.Fprintf(b, "  %s — %s\n", r.Isbn, r.Err)
		}
		fmt.Fprintln(b)
	}

	return b.String()
}

var htmlReport = template.Must(template.New("report").Parse(`<html>
<body style="font-family:Arial,sans-serif;max-width:700px;margin:auto">
<h2 style="color:#333">Momox ISBN Report</h2>
<p style="color:#666">{{.Date}} &mdash; {{.Total}} ISBNs scanned</p>

<h3 style="color:green">Available ({{len .Available}})</h3>
{{if not .Available}}<p>None today.</p>{{else}}
<table border="1" cellpadding="6" cellspacing="0" style="border-collapse:collapse;width:100%">
	<thead style="background:#e8f5e9">
		<tr><th>ISBN</th><th>Title</th><th>Price</th><th>Change</th><th>Link</th></tr>
	</thead>
	<tbody>
	{{range .Available}}
		<tr>
			<td>{{.Isbn}}</td><td>{{.Title}}</td><td>{{.Price}}</td><td>{{.Change}}</td>
			<td>{{if .Url}}<a href="{{.Url}}">View</a>{{end}}</td>
		</tr>
	{{end}}
	</tbody>
</table>
{{end}}

<h3 style="color:#c0392b">Not Available ({{len .NotAvailable}})</h3>
{{if not .NotAvailable}}<p>None today.</p>{{else}}
<table border="1" cellpadding="6" cellspacing="0" style="border-collapse:collapse;width:100%">
	<thead style="background:#fdecea">
		<tr><th>ISBN</th><th>Title</th><th>Change</th></tr>
	</thead>
	<tbody>
	{{range .NotAvailable}}
		<tr><td>{{.Isbn}}</td><td>{{.Title}}</td><td>{{.Change}}</td></tr>
	{{end}}
	</tbody>
</table>
{{end}}

{{if .Errors}}
<h3 style="color:orange">Errors ({{len .Errors}})</h3>
<table border="1" cellpadding="6" cellspacing="0" style="border-collapse:collapse;width:100%">
	<thead style="background:#fff3e0">
		<tr><th>ISBN</th><th>Error</th></tr>
	</thead>
	<tbody>
	{{range .Errors}}
		<tr><td>{{.Isbn}}</td><td>{{.Err}}</td></tr>
	{{end}}
	</tbody>
</table>
{{end}}

<p style="color:#aaa;font-size:12px;margin-top:30px">
	Generated by momox-agent &mdash; {{.GeneratedAt}}
</p>
</body>
</html>
`))
