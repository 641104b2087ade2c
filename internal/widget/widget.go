// Package widget renders the embeddable chat widget script and the snippet
// site owners paste into their pages. Both are plain text/template renders;
// the Gemini API key is left as a placeholder for the site owner to fill in,
// since the server never holds that credential.
package widget

import (
	"fmt"
	"strings"
	"text/template"
)

const APIKeyPlaceholder = "YOUR_GEMINI_API_KEY"

var embedTmpl = template.Must(template.New("embed").Parse(`<!-- {{.BotName}} chat widget -->
<script>
  window.botframeConfig = {
    botId: "{{.BotID}}",
    apiKey: "{{.APIKeyPlaceholder}}"
  };
</script>
<script src="{{.BaseURL}}/widget.js" async></script>
`))

var scriptTmpl = template.Must(template.New("script").Parse(`(function () {
  "use strict";

  var cfg = window.botframeConfig || {};
  if (!cfg.botId) {
    console.error("botframe: missing botId in window.botframeConfig");
    return;
  }

  var endpoint = "{{.BaseURL}}/api/chat";

  var sessionKey = "botframe_session_" + cfg.botId;
  var sessionId = localStorage.getItem(sessionKey);
  if (!sessionId) {
    sessionId = "session_" + Date.now() + "_" + Math.random().toString(36).slice(2);
    localStorage.setItem(sessionKey, sessionId);
  }

  var open = false;

  var root = document.createElement("div");
  root.style.cssText = "position:fixed;bottom:20px;right:20px;z-index:9999;font-family:sans-serif;";
  document.body.appendChild(root);

  var button = document.createElement("button");
  button.textContent = "💬 Chat";
  button.style.cssText = "padding:12px 24px;background:#2563eb;color:#fff;border:none;border-radius:9999px;cursor:pointer;font-size:16px;box-shadow:0 10px 15px -3px rgba(0,0,0,.1);";
  root.appendChild(button);

  var panel = document.createElement("div");
  panel.style.cssText = "display:none;background:#fff;border-radius:16px;box-shadow:0 25px 50px -12px rgba(0,0,0,.25);width:340px;height:480px;flex-direction:column;overflow:hidden;";
  root.appendChild(panel);

  var log = document.createElement("div");
  log.style.cssText = "flex:1;overflow-y:auto;padding:12px;";
  panel.appendChild(log);

  var form = document.createElement("form");
  form.style.cssText = "display:flex;border-top:1px solid #e2e8f0;";
  var input = document.createElement("input");
  input.type = "text";
  input.placeholder = "Type a message...";
  input.style.cssText = "flex:1;border:none;padding:12px;outline:none;";
  var send = document.createElement("button");
  send.type = "submit";
  send.textContent = "Send";
  send.style.cssText = "border:none;background:#2563eb;color:#fff;padding:0 16px;cursor:pointer;";
  form.appendChild(input);
  form.appendChild(send);
  panel.appendChild(form);

  function append(role, text) {
    var line = document.createElement("div");
    line.style.cssText = "margin:6px 0;padding:8px 12px;border-radius:12px;max-width:85%;white-space:pre-wrap;" +
      (role === "user" ? "background:#2563eb;color:#fff;margin-left:auto;" : "background:#f1f5f9;color:#0f172a;");
    line.textContent = text;
    log.appendChild(line);
    log.scrollTop = log.scrollHeight;
  }

  button.addEventListener("click", function () {
    open = true;
    button.style.display = "none";
    panel.style.display = "flex";
    if (!log.childNodes.length) {
      append("assistant", "Hello! How can I help you?");
    }
    input.focus();
  });

  var busy = false;
  form.addEventListener("submit", function (ev) {
    ev.preventDefault();
    var text = input.value.trim();
    if (!text || busy) return;
    input.value = "";
    append("user", text);
    busy = true;
    fetch(endpoint, {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({
        botId: cfg.botId,
        message: text,
        sessionId: sessionId,
        apiKey: cfg.apiKey
      })
    })
      .then(function (res) { return res.json(); })
      .then(function (data) {
        append("assistant", data.answer || data.error || "Sorry, something went wrong.");
      })
      .catch(function () {
        append("assistant", "Sorry, something went wrong.");
      })
      .then(function () { busy = false; });
  });
})();
`))

// EmbedSnippet renders the copy-paste block shown on the dashboard's widget
// page for one bot.
func EmbedSnippet(baseURL, botID, botName string) (string, error) {
	var b strings.Builder
	err := embedTmpl.Execute(&b, map[string]string{
		"BaseURL":           strings.TrimRight(baseURL, "/"),
		"BotID":             botID,
		"BotName":           botName,
		"APIKeyPlaceholder": APIKeyPlaceholder,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render embed snippet: %w", err)
	}
	return b.String(), nil
}

// Script renders the widget JavaScript served at /widget.js with the public
// chat endpoint baked in.
func Script(baseURL string) (string, error) {
	var b strings.Builder
	err := scriptTmpl.Execute(&b, map[string]string{
		"BaseURL": strings.TrimRight(baseURL, "/"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render widget script: %w", err)
	}
	return b.String(), nil
}
