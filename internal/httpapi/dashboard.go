package httpapi

import (
	"fmt"
	"net/http"
)

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Tab Groups</title>
  <style>
    body { margin: 0; font: 14px/1.45 system-ui, sans-serif; color: #14262b; background: #f4f6f5; }
    main { max-width: 760px; margin: 2rem auto; padding: 0 1rem; }
    h1 { font-size: 1.2rem; }
    section { background: #fff; border: 1px solid #d8e0dd; border-radius: 8px; padding: 1rem; margin-bottom: 1rem; }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: 0.3rem 0.5rem; border-bottom: 1px solid #edf1ef; }
    button { cursor: pointer; border: 1px solid #2b7263; background: #338573; color: #fff; border-radius: 5px; padding: 0.25rem 0.7rem; }
    button.plain { background: #fff; color: #14262b; border-color: #c4cfcb; }
    input { border: 1px solid #c4cfcb; border-radius: 5px; padding: 0.3rem 0.5rem; }
    #events { max-height: 14rem; overflow-y: auto; font-family: ui-monospace, monospace; font-size: 12px; }
    .muted { color: #64766f; }
  </style>
</head>
<body>
  <main>
    <h1>Tab Groups</h1>
    <section>
      <label>API token <input id="token" type="password" placeholder="leave empty if unset" /></label>
      <button class="plain" id="refresh">Refresh</button>
      <span id="status" class="muted"></span>
    </section>
    <section>
      <h2>Synced windows</h2>
      <table id="mappings"><thead><tr><th>Window</th><th>Folder</th><th></th></tr></thead><tbody></tbody></table>
    </section>
    <section>
      <h2>Folders</h2>
      <table id="folders"><thead><tr><th>Title</th><th>Window</th><th></th></tr></thead><tbody></tbody></table>
    </section>
    <section>
      <h2>Live events</h2>
      <div id="events" class="muted">waiting for events...</div>
    </section>
  </main>
  <script>
    const tokenInput = document.getElementById("token");
    const statusEl = document.getElementById("status");
    const headers = () => {
      const h = { "Content-Type": "application/json" };
      if (tokenInput.value) h["Authorization"] = "Bearer " + tokenInput.value;
      return h;
    };
    const api = async (method, path, body) => {
      const resp = await fetch(path, { method, headers: headers(), body: body ? JSON.stringify(body) : undefined });
      if (!resp.ok) throw new Error((await resp.json()).message || resp.statusText);
      return resp.json();
    };
    const fill = (tableId, rows) => {
      const tbody = document.querySelector("#" + tableId + " tbody");
      tbody.innerHTML = "";
      rows.forEach(cells => {
        const tr = document.createElement("tr");
        cells.forEach(c => { const td = document.createElement("td"); if (c instanceof Node) { td.appendChild(c); } else { td.textContent = c; } tr.appendChild(td); });
        tbody.appendChild(tr);
      });
    };
    const actionButton = (label, fn) => {
      const b = document.createElement("button");
      b.textContent = label;
      b.addEventListener("click", () => fn().then(refresh).catch(e => statusEl.textContent = e.message));
      return b;
    };
    const refresh = async () => {
      try {
        const windows = await api("GET", "/v1/windows");
        fill("mappings", (windows.mappings || []).map(m => [
          m.windowId, m.folderTitle || m.folderId,
          actionButton("Unsync", () => api("DELETE", "/v1/windows/" + m.windowId + "/association")),
        ]));
        const folders = await api("GET", "/v1/folders");
        fill("folders", (folders.folders || []).map(f => [
          f.title, f.windowId || "-",
          f.windowId ? "" : actionButton("Open", () => api("POST", "/v1/folders/" + f.id + "/open", { folderTitle: f.title })),
        ]));
        statusEl.textContent = "";
      } catch (e) {
        statusEl.textContent = e.message;
      }
    };
    const listen = () => {
      const proto = location.protocol === "https:" ? "wss:" : "ws:";
      const query = tokenInput.value ? "?access_token=" + encodeURIComponent(tokenInput.value) : "";
      const sock = new WebSocket(proto + "//" + location.host + "/v1/events" + query);
      const log = document.getElementById("events");
      sock.onmessage = ev => {
        const n = JSON.parse(ev.data);
        const line = document.createElement("div");
        line.textContent = n.timestamp + " " + n.type + (n.windowId ? " window=" + n.windowId : "") + (n.folderId ? " folder=" + n.folderId : "");
        log.prepend(line);
        if (n.type.startsWith("mapping.") || n.type === "window.opened") refresh();
      };
      sock.onclose = () => setTimeout(listen, 2000);
    };
    document.getElementById("refresh").addEventListener("click", refresh);
    refresh();
    listen();
  </script>
</body>
</html>`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, dashboardHTML)
}
