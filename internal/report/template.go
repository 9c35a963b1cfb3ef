package report

// reportTemplate mirrors the dashboard's report layout: header, creative
// beside the KPI table, analysis, proposed scripts, concept images.
const reportTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Informe de Análisis para {{.ClientName}}</title>
<style>
    body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; margin: 0; padding: 0; background-color: #f8f9fa; color: #212529; }
    .main-container { max-width: 1200px; margin: 40px auto; }
    .ad-container { background: white; padding: 30px; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.05); margin-bottom: 40px; }
    h1, h2, h3 { color: #0056b3; }
    h1 { font-size: 2.8em; text-align: center; margin-bottom: 20px; }
    h1 small { font-size: 0.5em; color: #6c757d; display: block; margin-top: 10px; }
    h2 { font-size: 2em; border-bottom: 2px solid #dee2e6; padding-bottom: 10px; margin-top: 40px; }
    h3 { font-size: 1.5em; border-bottom: none; }
    table { width: 100%; border-collapse: collapse; margin-top: 20px; }
    th, td { border: 1px solid #dee2e6; padding: 12px; text-align: left; vertical-align: top; }
    th { background-color: #e9ecef; font-weight: 600; }
    .kpi-value { text-align: right; font-weight: bold; font-family: "SFMono-Regular", Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; }
    .analysis { margin-top: 20px; line-height: 1.6; }
    .grid-container { display: grid; grid-template-columns: 1fr 1fr; gap: 40px; align-items: start; }
    .concept-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(220px, 1fr)); gap: 20px; margin-top: 20px; }
    .concept-card img { width: 100%; height: auto; border-radius: 4px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
    .concept-card figcaption { font-size: 0.85em; color: #6c757d; margin-top: 8px; }
    .footer { text-align: center; color: #6c757d; font-size: 0.85em; margin: 20px 0; }
    @media (max-width: 768px) { .grid-container { grid-template-columns: 1fr; } }
</style>
</head>
<body>
<div class="main-container">
    <h1>Informe de Análisis de Rendimiento<small>Cliente: {{.ClientName}}</small></h1>
    <div class="ad-container">
        <h2>{{.AdName}} (ID: {{.AdID}})</h2>
        <div class="grid-container">
            <div><h3>Creatividad del Anuncio</h3>{{.MediaHTML}}</div>
            <div><h3>Indicadores Clave (KPIs)</h3>
                <table>
                    <tr><th>Métrica</th><th class="kpi-value">Valor</th></tr>
                    {{with .Insights}}
                    <tr><td>Inversión (Spend)</td><td class="kpi-value">{{printf "%.2f" .Spend}} $</td></tr>
                    <tr><td>Costo por Compra (CPA)</td><td class="kpi-value">{{printf "%.2f" .CPA}} $</td></tr>
                    <tr><td>Número de Compras</td><td class="kpi-value">{{.WebsitePurchases}}</td></tr>
                    <tr><td>Valor de las Compras</td><td class="kpi-value">{{printf "%.2f" .WebsitePurchasesValue}} $</td></tr>
                    <tr><td>ROAS</td><td class="kpi-value">{{printf "%.2f" .ROAS}}x</td></tr>
                    <tr><td>CPM</td><td class="kpi-value">{{printf "%.2f" .CPM}} $</td></tr>
                    <tr><td>CTR (único)</td><td class="kpi-value">{{printf "%.2f" .UniqueCTR}} %</td></tr>
                    <tr><td>Frecuencia</td><td class="kpi-value">{{printf "%.2f" .Frequency}}</td></tr>
                    {{if $.IsVideo}}
                    <tr><td><b>Tasa de Enganche (Hook Rate)</b></td><td class="kpi-value"><b>{{printf "%.2f" .HookRate}} %</b></td></tr>
                    <tr><td><b>Tasa de Retención (Hold Rate)</b></td><td class="kpi-value"><b>{{printf "%.2f" .HoldRate}} %</b></td></tr>
                    {{end}}
                    {{else}}
                    <tr><td colspan="2">Sin datos de rendimiento</td></tr>
                    {{end}}
                </table>
            </div>
        </div>
        <div><h3>Análisis Cualitativo del Experto IA</h3><div class="analysis">{{.AnalysisHTML}}</div></div>
        <div><h3>{{.ProposalsTitle}}</h3><div class="analysis">{{.ScriptHTML}}</div></div>
        {{if .Concepts}}
        <div><h3>Visualización de Conceptos</h3>
            <div class="concept-grid">
                {{range .Concepts}}
                <figure class="concept-card">
                    <img src="{{.DataURI}}" alt="{{.Prompt}}">
                    <figcaption>{{.Prompt}}</figcaption>
                </figure>
                {{end}}
            </div>
        </div>
        {{end}}
    </div>
    <p class="footer">Generado el {{.GeneratedAt}}</p>
</div>
</body>
</html>
`
