// Package dashboard serves a small web UI and REST API over the
// learning pipeline's state.
//
// The dashboard is mounted on /dashboard and /api/ on the same port.
// It provides:
//
//   - Web UI:     GET /dashboard          — Single-page HTML dashboard
//   - WebSocket:  GET /dashboard/ws       — Live cycle/insight feed
//   - REST API:   GET /api/status         — Engine status
//                 GET /api/playbook       — Current playbook bullets
//                 GET /api/metrics        — Evaluator metrics
//                 GET /api/cycle/last     — Most recent cycle result
//
// The web UI is a minimal embedded HTML page (no build step, no framework).
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sjarmak/acebeads/internal/cycle"
	"github.com/sjarmak/acebeads/internal/evaluator"
	"github.com/sjarmak/acebeads/internal/knowledge"
)

// Options holds the dependencies injected into the dashboard.
type Options struct {
	Knowledge *knowledge.Store
}

// Dashboard serves the web UI and REST API over a knowledge store's
// current state. Implements http.Handler for the dashboard UI routes.
type Dashboard struct {
	knowledge *knowledge.Store
	wsHub     *wsHub

	mu       sync.RWMutex
	lastRun  *cycle.Result
}

// New creates a new Dashboard with the given dependencies.
func New(opts Options) *Dashboard {
	d := &Dashboard{
		knowledge: opts.Knowledge,
		wsHub:     newWSHub(),
	}

	go d.wsHub.run()

	return d
}

// ServeHTTP handles requests to /dashboard and /dashboard/.
// Serves a minimal embedded HTML dashboard.
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(dashboardHTML))
}

// WebSocketHandler returns an http.Handler for the /dashboard/ws endpoint.
// Clients connect here to receive the live cycle/insight feed.
func (d *Dashboard) WebSocketHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.handleWebSocket(w, r)
	})
}

// APIHandler returns an http.Handler for the /api/ REST endpoints.
func (d *Dashboard) APIHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", d.handleAPIStatus)
	mux.HandleFunc("/api/playbook", d.handleAPIPlaybook)
	mux.HandleFunc("/api/metrics", d.handleAPIMetrics)
	mux.HandleFunc("/api/cycle/last", d.handleAPICycleLast)

	return mux
}

// cycleBroadcast is the envelope sent over the WebSocket feed. The Type
// tag lets a client distinguish a live cycle broadcast from a future
// message kind (e.g. a ping) without guessing from shape alone; it is
// also what the hub replays verbatim as backfill to newly-connected
// clients (see websocket.go's lastMessage).
type cycleBroadcast struct {
	Type   string       `json:"type"`
	Result cycle.Result `json:"result"`
}

// RecordCycle stores the most recent cycle result and broadcasts it to
// connected WebSocket clients. Called by the caller running cycle.Runner
// in the same process after each pass (e.g. `acebeads dashboard serve
// --cycle-every`); cycles run by a separate `acebeads cycle run` process
// are not recorded.
func (d *Dashboard) RecordCycle(result cycle.Result) {
	d.mu.Lock()
	d.lastRun = &result
	d.mu.Unlock()

	data, err := json.Marshal(cycleBroadcast{Type: "cycle_result", Result: result})
	if err != nil {
		slog.Error("failed to marshal cycle result for broadcast", "error", err)
		return
	}
	d.wsHub.broadcast(data)
}

// --- REST API Handlers ---

// handleAPIStatus returns engine status information.
// GET /api/status
func (d *Dashboard) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	bullets, _, err := d.knowledge.LoadBullets()
	if err != nil {
		slog.Error("status: loading playbook failed", "error", err)
		http.Error(w, "loading playbook failed", http.StatusInternalServerError)
		return
	}

	d.mu.RLock()
	hasRun := d.lastRun != nil
	d.mu.RUnlock()

	status := map[string]any{
		"status":        "running",
		"total_bullets": len(bullets),
		"has_cycle_run": hasRun,
	}
	writeJSON(w, http.StatusOK, status)
}

// handleAPIPlaybook returns the current playbook bullets.
// GET /api/playbook?section=testing
func (d *Dashboard) handleAPIPlaybook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	bullets, _, err := d.knowledge.LoadBullets()
	if err != nil {
		slog.Error("playbook query failed", "error", err)
		http.Error(w, "playbook query failed", http.StatusInternalServerError)
		return
	}

	if section := r.URL.Query().Get("section"); section != "" {
		filtered := make([]knowledge.Bullet, 0, len(bullets))
		for _, b := range bullets {
			if b.Section == section {
				filtered = append(filtered, b)
			}
		}
		bullets = filtered
	}

	writeJSON(w, http.StatusOK, bullets)
}

// handleAPIMetrics returns Evaluator metrics over the current playbook.
// GET /api/metrics
func (d *Dashboard) handleAPIMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	bullets, _, err := d.knowledge.LoadBullets()
	if err != nil {
		slog.Error("metrics query failed", "error", err)
		http.Error(w, "metrics query failed", http.StatusInternalServerError)
		return
	}

	metrics := evaluator.Compute(bullets)
	writeJSON(w, http.StatusOK, metrics)
}

// handleAPICycleLast returns the most recently recorded cycle result,
// or 404 if no cycle has run since the dashboard started.
// GET /api/cycle/last
func (d *Dashboard) handleAPICycleLast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	d.mu.RLock()
	result := d.lastRun
	d.mu.RUnlock()

	if result == nil {
		http.Error(w, "no cycle has run yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// dashboardHTML is the embedded HTML for the dashboard. Minimal
// single-page UI that shows playbook bullets, evaluator metrics, and
// the most recent cycle result. Refreshes via periodic fetch + WebSocket.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>acebeads Dashboard</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
         background: #0f1117; color: #e1e4e8; padding: 24px; }
  h1 { font-size: 24px; margin-bottom: 8px; }
  .subtitle { color: #8b949e; margin-bottom: 24px; }
  .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; margin-bottom: 24px; }
  .card { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 16px; }
  .card h2 { font-size: 14px; color: #8b949e; text-transform: uppercase; margin-bottom: 12px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th { text-align: left; color: #8b949e; padding: 6px 8px; border-bottom: 1px solid #30363d; }
  td { padding: 6px 8px; border-bottom: 1px solid #21262d; }
  .score-pos { color: #3fb950; }
  .score-neg { color: #f85149; }
  #live-feed { max-height: 300px; overflow-y: auto; font-family: monospace; font-size: 12px; }
  .feed-entry { padding: 4px 0; border-bottom: 1px solid #21262d; }
</style>
</head>
<body>
<h1>acebeads Dashboard</h1>
<p class="subtitle">Self-improving context engine for coding agents</p>

<div class="grid">
  <div class="card">
    <h2>Playbook</h2>
    <table>
      <thead><tr><th>Section</th><th>Bullet</th><th>Helpful</th><th>Harmful</th></tr></thead>
      <tbody id="playbook-tbody"><tr><td colspan="4">Loading...</td></tr></tbody>
    </table>
  </div>
  <div class="card">
    <h2>Metrics</h2>
    <table>
      <thead><tr><th>Section</th><th>Bullets</th></tr></thead>
      <tbody id="metrics-tbody"><tr><td colspan="2">Loading...</td></tr></tbody>
    </table>
  </div>
</div>

<div class="card">
  <h2>Cycle Feed</h2>
  <div id="live-feed"><div class="feed-entry">Connecting...</div></div>
</div>

<script>
function esc(s) {
  if (s == null) return '';
  return String(s).replace(/&/g,'&amp;').replace(/</g,'&lt;').replace(/>/g,'&gt;').replace(/"/g,'&quot;').replace(/'/g,'&#39;');
}
async function refresh() {
  try {
    const [playbookRes, metricsRes] = await Promise.all([
      fetch('/api/playbook'), fetch('/api/metrics')
    ]);
    renderPlaybook(await playbookRes.json());
    renderMetrics(await metricsRes.json());
  } catch(e) { console.error('refresh failed:', e); }
}

function renderPlaybook(bullets) {
  const tbody = document.getElementById('playbook-tbody');
  if (!bullets || bullets.length === 0) { tbody.innerHTML = '<tr><td colspan="4">No bullets yet</td></tr>'; return; }
  tbody.innerHTML = bullets.map(b =>
    '<tr><td>' + esc(b.Section) + '</td><td>' + esc(b.Content) + '</td><td class="score-pos">' +
    (b.Helpful||0) + '</td><td class="score-neg">' + (b.Harmful||0) + '</td></tr>'
  ).join('');
}

function renderMetrics(m) {
  const tbody = document.getElementById('metrics-tbody');
  const bySection = m.BySection || {};
  const keys = Object.keys(bySection);
  if (keys.length === 0) { tbody.innerHTML = '<tr><td colspan="2">No data</td></tr>'; return; }
  tbody.innerHTML = keys.map(k => '<tr><td>' + esc(k) + '</td><td>' + bySection[k] + '</td></tr>').join('');
}

function connectWS() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/dashboard/ws');
  ws.onmessage = function(e) {
    try {
      const envelope = JSON.parse(e.data);
      if (envelope.type !== 'cycle_result') return;
      const result = envelope.result || {};
      const feed = document.getElementById('live-feed');
      const div = document.createElement('div');
      div.className = 'feed-entry';
      div.innerHTML = 'mined=' + (result.insights_mined||0) + ' accepted=' + (result.accepted||[]).length +
        ' rejected=' + (result.rejected||[]).length + ' net_score_change=' + (result.net_score_change||0);
      feed.insertBefore(div, feed.firstChild);
      while (feed.children.length > 100) feed.removeChild(feed.lastChild);
      refresh();
    } catch(err) { console.error('ws parse error:', err); }
  };
  ws.onclose = function() { setTimeout(connectWS, 3000); };
  ws.onerror = function() { ws.close(); };
}

refresh();
setInterval(refresh, 5000);
connectWS();
</script>
</body>
</html>`
