package report

// ReportTemplate is the HTML template for the risk report. It is a Go
// constant so reports need no files at runtime.
const ReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 1000px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.5rem; margin-bottom: 4px; color: var(--accent); }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }

  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-start;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .header-right { text-align: right; }

  .summary { display: flex; gap: 16px; align-items: flex-start; }
  .kpi-grid {
    flex: 1;
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(200px, 1fr));
    gap: 8px;
  }
  .kpi-card {
    background: var(--section-bg);
    padding: 8px 12px;
    border-radius: 6px;
    display: flex;
    justify-content: space-between;
  }
  .kpi-card .label { color: var(--muted); font-size: 0.85rem; }
  .kpi-card .value { font-weight: 600; }

  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.85rem; }
  th { background: var(--section-bg); text-align: left; padding: 6px 8px; font-weight: 600; }
  td { padding: 6px 8px; border-bottom: 1px solid var(--border); }
  td.num, th.num { text-align: right; }
  .positive { color: var(--green); }
  .negative { color: var(--red); }
  .badge { display: inline-block; padding: 1px 8px; border-radius: 3px; font-size: 0.8rem; font-weight: 600; }
  .badge.ok { background: #dcfce7; color: var(--green); }
  .badge.fail { background: #fef2f2; color: var(--red); }
  ul.issues { margin: 4px 0 0 18px; color: var(--muted); }

  .chart-container { margin: 12px 0; overflow-x: auto; }
  .chart-container svg { max-width: 100%; height: auto; }

  .section { margin: 20px 0; }
  .footer {
    margin-top: 30px;
    padding-top: 12px;
    border-top: 2px solid var(--border);
    font-size: 0.8rem;
    color: var(--muted);
    text-align: center;
  }

  @media print {
    body { max-width: 100%; padding: 10px; }
    .section { page-break-inside: avoid; }
  }
</style>
</head>
<body>

<div class="header">
  <div>
    <h1>{{.Title}}</h1>
    {{if .BookName}}<p class="muted">{{.BookName}}</p>{{end}}
  </div>
  <div class="header-right">
    <p class="muted">{{.GeneratedAt}}</p>
    <p class="muted">{{.Author}}</p>
  </div>
</div>

{{if .ShowSummary}}
<div class="section">
  <h2>Portfolio Summary</h2>
  <div class="summary">
    <div class="kpi-grid">
      {{range .KPIs}}
      <div class="kpi-card"><span class="label">{{.Label}}</span><span class="value">{{.Value}}</span></div>
      {{end}}
    </div>
    {{if .ROEGauge}}<div>{{.ROEGauge}}</div>{{end}}
  </div>
</div>
{{end}}

{{if .ShowLoans}}
<div class="section">
  <h2>Loans</h2>
  <table>
    <thead><tr>
      <th>ID</th><th>Name</th><th>Rating</th><th class="num">Exposure</th><th class="num">PD</th><th class="num">LGD</th>
      <th class="num">EL</th><th class="num">RWA</th><th class="num">ROE</th><th class="num">RAROC</th><th class="num">EVA</th>
    </tr></thead>
    <tbody>
    {{range .Loans}}
    <tr>
      <td>{{.ID}}</td><td>{{.Name}}</td><td>{{.Rating}}</td><td class="num">{{.Exposure}}</td>
      <td class="num">{{.PD}}</td><td class="num">{{.LGD}}</td><td class="num">{{.EL}}</td><td class="num">{{.RWA}}</td>
      <td class="num">{{.ROE}}</td><td class="num">{{.RAROC}}</td><td class="num {{.EVAClass}}">{{.EVA}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>
  {{if .LossChart}}<div class="chart-container">{{.LossChart}}</div>{{end}}
</div>
{{end}}

{{if .ShowStress}}
<div class="section">
  <h2>Stress Scenarios</h2>
  <table>
    <thead><tr>
      <th>Scenario</th><th class="num">PD</th><th class="num">LGD</th><th class="num">EL</th><th class="num">vs base</th>
      <th class="num">RWA</th><th class="num">Capital</th><th class="num">ROE</th>
    </tr></thead>
    <tbody>
    {{range .Stress}}
    <tr>
      <td>{{.Name}}{{if .Description}}<br><span class="muted">{{.Description}}</span>{{end}}</td>
      <td class="num">{{.PDMultiplier}}</td><td class="num">{{.LGDMultiplier}}</td><td class="num">{{.EL}}</td>
      <td class="num">{{.ELChange}}</td><td class="num">{{.RWA}}</td><td class="num">{{.Capital}}</td><td class="num">{{.ROE}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>
  {{if .StressChart}}<div class="chart-container">{{.StressChart}}</div>{{end}}
</div>
{{end}}

{{if .ShowCollateral}}
<div class="section">
  <h2>Collateral</h2>
  <table>
    <thead><tr>
      <th>Pool</th><th class="num">Items</th><th class="num">Value</th><th class="num">Diversification</th>
      <th class="num">Concentration</th><th class="num">VaR 95</th><th class="num">HQLA</th><th>Status</th>
    </tr></thead>
    <tbody>
    {{range .Collateral}}
    <tr>
      <td>{{.ID}}</td><td class="num">{{.Items}}</td><td class="num">{{.TotalValue}}</td><td class="num">{{.Diversification}}</td>
      <td class="num">{{.Concentration}}</td><td class="num">{{.VaR95}}</td><td class="num">{{.HQLARatio}}</td>
      <td>
        {{if .Compliant}}<span class="badge ok">compliant</span>{{else}}<span class="badge fail">not compliant</span>{{end}}
        {{if .Issues}}<ul class="issues">{{range .Issues}}<li>{{.}}</li>{{end}}</ul>{{end}}
      </td>
    </tr>
    {{end}}
    </tbody>
  </table>
</div>
{{end}}

{{if .ShowLGD}}
<div class="section">
  <h2>LGD Curves</h2>
  <div class="chart-container">{{.LGDChart}}</div>
</div>
{{end}}

<div class="footer">
  <p>Generated by financify on {{.GeneratedAt}}. Figures are model estimates based on the supplied parameters.</p>
</div>

</body>
</html>`
