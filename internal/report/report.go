// Package report renders the human-readable summary shipped in evidence bundles.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/banking/dnfbp-risk/internal/domain"
)

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>DNFBP risk assessment - {{.Meta.RulesetID}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1f2933; }
        table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
        th, td { border: 1px solid #cbd2d9; padding: 0.4rem 0.6rem; text-align: left; vertical-align: top; }
        th { background: #f5f7fa; }
        .band-High { color: #b91c1c; font-weight: 600; }
        .band-Medium { color: #b45309; font-weight: 600; }
        .band-Low { color: #047857; }
        .meta dt { font-weight: 600; }
    </style>
</head>
<body>
    <h1>DNFBP risk assessment</h1>
    <dl class="meta">
        <dt>Ruleset</dt><dd>{{.Meta.RulesetID}}</dd>
        <dt>Lookback</dt><dd>{{.Meta.Lookback.Start}} to {{.Meta.Lookback.End}}</dd>
        <dt>Corridor countries</dt><dd>{{join .Meta.CorridorCountries}}</dd>
        <dt>Banding</dt><dd>High &ge; {{.Meta.Banding.High}}, Medium &ge; {{.Meta.Banding.Medium}}</dd>
        <dt>Generated</dt><dd>{{.Generated}}</dd>
    </dl>

    <h2>Summary</h2>
    <table>
        <tr><th>Band</th><th>Clients</th></tr>
        {{range .Summary}}<tr><td class="band-{{.Band}}">{{.Band}}</td><td>{{.Count}}</td></tr>
        {{end}}
    </table>

    <h2>Client scores</h2>
    {{if .Scores}}
    <table>
        <tr><th>Client</th><th>Score</th><th>Band</th><th>Reasons</th></tr>
        {{range .Scores}}<tr>
            <td>{{.ClientID}}</td>
            <td>{{.Score}}</td>
            <td class="band-{{.Band}}">{{.Band}}</td>
            <td>{{range .Reasons}}{{.Text}} (+{{.Points}})<br>{{else}}-{{end}}</td>
        </tr>
        {{end}}
    </table>
    {{else}}
    <p>No clients were scored.</p>
    {{end}}

    <h2>Cases</h2>
    {{if .Cases}}
    <table>
        <tr><th>Case</th><th>Client</th><th>Band</th><th>Score</th><th>Status</th></tr>
        {{range .Cases}}<tr>
            <td>{{.CaseNumber}}</td>
            <td>{{.ClientID}}</td>
            <td class="band-{{.Band}}">{{.Band}}</td>
            <td>{{.Score}}</td>
            <td>{{.Status}}</td>
        </tr>
        {{end}}
    </table>
    {{else}}
    <p>No cases raised.</p>
    {{end}}
</body>
</html>
`

type bandCount struct {
	Band  domain.Band
	Count int
}

type reportData struct {
	Meta      domain.RulesetMetadata
	Generated string
	Summary   []bandCount
	Scores    []domain.RiskScoreResult
	Cases     []domain.RiskCase
}

// Renderer turns a scoring run into an HTML document
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the report template
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"join": joinCodes,
	}).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render returns the report for output and cases. Clients are listed by
// descending score, then client id. All values are HTML-escaped.
func (r *Renderer) Render(output domain.ScoringOutput, cases []domain.RiskCase, generated time.Time) ([]byte, error) {
	scores := append([]domain.RiskScoreResult(nil), output.Scores...)
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ClientID < scores[j].ClientID
	})

	counts := output.BandCounts()
	data := reportData{
		Meta:      output.Meta,
		Generated: generated.UTC().Format(time.RFC3339),
		Summary: []bandCount{
			{Band: domain.BandHigh, Count: counts[domain.BandHigh]},
			{Band: domain.BandMedium, Count: counts[domain.BandMedium]},
			{Band: domain.BandLow, Count: counts[domain.BandLow]},
		},
		Scores: scores,
		Cases:  cases,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func joinCodes(codes []string) string {
	if len(codes) == 0 {
		return "-"
	}
	var buf bytes.Buffer
	for i, c := range codes {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(c)
	}
	return buf.String()
}
