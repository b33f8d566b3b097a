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
  <title>Record Mirror</title>
  <style>
    :root {
      --ink: #102223;
      --paper: #f8f4ea;
      --card: #fffdf9;
      --line: #d7cbb3;
      --accent: #1f9d88;
      --danger: #c2483f;
      --muted: #6f7d7d;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 20px;
      font-family: "Avenir Next", "Segoe UI", sans-serif;
      color: var(--ink);
      background: var(--paper);
    }
    .shell { max-width: 1100px; margin: 0 auto; display: grid; gap: 14px; }
    .bar {
      display: flex; flex-wrap: wrap; gap: 10px; align-items: center;
      background: var(--card); border: 1px solid var(--line); border-radius: 14px; padding: 14px;
    }
    h1 { margin: 0 auto 0 0; font-size: 1.4rem; }
    input { border: 1px solid var(--line); border-radius: 8px; padding: 7px 9px; font: inherit; }
    button {
      border: 0; border-radius: 8px; padding: 7px 12px; font: inherit; cursor: pointer;
      background: var(--accent); color: #fff;
    }
    button.ghost { background: transparent; color: var(--ink); border: 1px solid var(--line); }
    button.danger { background: var(--danger); }
    button:disabled { opacity: 0.4; cursor: default; }
    table { width: 100%; border-collapse: collapse; background: var(--card); border-radius: 14px; overflow: hidden; }
    th, td { text-align: left; padding: 9px 10px; border-bottom: 1px solid var(--line); }
    th { font-size: 0.8rem; text-transform: uppercase; color: var(--muted); }
    .status { color: var(--muted); font-size: 0.9rem; }
    .status.err { color: var(--danger); }
    form.bar input { flex: 1 1 140px; }
  </style>
</head>
<body>
  <div class="shell">
    <div class="bar">
      <h1>Record Mirror</h1>
      <input id="search" placeholder="Search by name" />
      <button id="reset" class="ghost">Reset</button>
    </div>
    <form id="editor" class="bar">
      <input name="name" placeholder="Name" />
      <input name="username" placeholder="Username" />
      <input name="email" placeholder="Email" />
      <input name="phone" placeholder="Phone" />
      <input name="website" placeholder="Website" />
      <input name="city" placeholder="City" />
      <input name="company" placeholder="Company" />
      <button type="submit" id="save">Add</button>
      <button type="button" id="cancel" class="ghost" hidden>Cancel</button>
    </form>
    <table>
      <thead>
        <tr><th>ID</th><th>Name</th><th>Username</th><th>Email</th><th>City</th><th>Company</th><th></th></tr>
      </thead>
      <tbody id="rows"></tbody>
    </table>
    <div class="bar">
      <button id="prev" class="ghost">Previous</button>
      <span id="pager" class="status"></span>
      <button id="next" class="ghost">Next</button>
      <span id="status" class="status"></span>
    </div>
  </div>
  <script>
    (function () {
      var dom = {
        search: document.getElementById("search"),
        reset: document.getElementById("reset"),
        editor: document.getElementById("editor"),
        save: document.getElementById("save"),
        cancel: document.getElementById("cancel"),
        rows: document.getElementById("rows"),
        prev: document.getElementById("prev"),
        next: document.getElementById("next"),
        pager: document.getElementById("pager"),
        status: document.getElementById("status")
      };
      var page = { rows: [], currentPage: 1, totalPages: 0 };
      var editing = 0;

      function setStatus(text, isError) {
        dom.status.textContent = text || "";
        dom.status.className = isError ? "status err" : "status";
      }

      async function request(method, path, body) {
        var response = await fetch(path, {
          method: method,
          headers: body ? { "Content-Type": "application/json" } : {},
          body: body ? JSON.stringify(body) : undefined
        });
        var payload = await response.json();
        if (!response.ok) {
          throw new Error(payload.message || response.statusText);
        }
        return payload;
      }

      function cell(text) {
        var td = document.createElement("td");
        td.textContent = text == null ? "" : String(text);
        return td;
      }

      function render(next) {
        page = next;
        dom.rows.innerHTML = "";
        (page.rows || []).forEach(function (rec) {
          var tr = document.createElement("tr");
          tr.appendChild(cell(rec.id));
          tr.appendChild(cell(rec.name));
          tr.appendChild(cell(rec.username));
          tr.appendChild(cell(rec.email));
          tr.appendChild(cell(rec.address && rec.address.city));
          tr.appendChild(cell(rec.company && rec.company.name));
          var actions = document.createElement("td");
          var edit = document.createElement("button");
          edit.className = "ghost";
          edit.textContent = "Edit";
          edit.addEventListener("click", function () { startEdit(rec); });
          var del = document.createElement("button");
          del.className = "danger";
          del.textContent = "Delete";
          del.addEventListener("click", function () { remove(rec.id); });
          actions.appendChild(edit);
          actions.appendChild(del);
          tr.appendChild(actions);
          dom.rows.appendChild(tr);
        });
        dom.pager.textContent = "Page " + page.currentPage + " of " + Math.max(1, page.totalPages);
        dom.prev.disabled = page.currentPage <= 1;
        dom.next.disabled = page.currentPage >= page.totalPages;
      }

      function startEdit(rec) {
        editing = rec.id;
        var f = dom.editor.elements;
        f.name.value = rec.name || "";
        f.username.value = rec.username || "";
        f.email.value = rec.email || "";
        f.phone.value = rec.phone || "";
        f.website.value = rec.website || "";
        f.city.value = (rec.address && rec.address.city) || "";
        f.company.value = (rec.company && rec.company.name) || "";
        dom.save.textContent = "Save #" + rec.id;
        dom.cancel.hidden = false;
      }

      function stopEdit() {
        editing = 0;
        dom.editor.reset();
        dom.save.textContent = "Add";
        dom.cancel.hidden = true;
      }

      function formBody() {
        var f = dom.editor.elements;
        return {
          name: f.name.value,
          username: f.username.value,
          email: f.email.value,
          phone: f.phone.value,
          website: f.website.value,
          address: { city: f.city.value },
          company: { name: f.company.value }
        };
      }

      async function run(action) {
        try {
          setStatus("working...");
          var result = await action();
          if (result && result.page) {
            render(result.page);
          } else if (result && result.rows) {
            render(result);
          }
          setStatus("");
        } catch (err) {
          setStatus(err.message, true);
        }
      }

      function remove(id) {
        run(function () { return request("DELETE", "/api/records/" + id); });
      }

      dom.editor.addEventListener("submit", function (event) {
        event.preventDefault();
        run(async function () {
          var result = editing
            ? await request("PUT", "/api/records/" + editing, formBody())
            : await request("POST", "/api/records", formBody());
          stopEdit();
          return result;
        });
      });
      dom.cancel.addEventListener("click", stopEdit);
      dom.search.addEventListener("input", function () {
        run(function () { return request("PUT", "/api/view/search", { term: dom.search.value }); });
      });
      dom.prev.addEventListener("click", function () {
        run(function () { return request("PUT", "/api/view/page", { page: page.currentPage - 1 }); });
      });
      dom.next.addEventListener("click", function () {
        run(function () { return request("PUT", "/api/view/page", { page: page.currentPage + 1 }); });
      });
      dom.reset.addEventListener("click", function () {
        dom.search.value = "";
        run(function () { return request("POST", "/api/reset"); });
      });

      function connect() {
        var scheme = location.protocol === "https:" ? "wss://" : "ws://";
        var socket = new WebSocket(scheme + location.host + "/api/ws");
        socket.onmessage = function (event) { render(JSON.parse(event.data)); };
        socket.onclose = function () { setTimeout(connect, 2000); };
      }

      run(function () { return request("GET", "/api/page"); });
      connect();
    })();
  </script>
</body>
</html>`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, dashboardHTML)
}
