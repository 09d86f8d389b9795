// Package preview builds the browser-side isolation document for hosts that
// render the artifact in an iframe instead of the server realm.
package preview

import (
	"bytes"
	"html/template"

	"github.com/adalundhe/canvas/core/sandbox"
	"github.com/adalundhe/canvas/core/transpile"
)

const (
	ReactURL    = "https://unpkg.com/react@18/umd/react.development.js"
	ReactDOMURL = "https://unpkg.com/react-dom@18/umd/react-dom.development.js"
	TailwindURL = "https://cdn.tailwindcss.com"

	// Sandbox is the iframe sandbox attribute. allow-same-origin is left out
	// so the frame gets an opaque origin: no host storage, no top navigation.
	Sandbox = "allow-scripts"
)

var documentTemplate = template.Must(template.New("document").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <script src="{{.ReactURL}}" crossorigin></script>
    <script src="{{.ReactDOMURL}}" crossorigin></script>
    <script src="{{.TailwindURL}}"></script>
    <style>
      html,body{height:100%;}
      body{margin:0;}
      :root{ {{.Vars}} }
    </style>
  </head>
  <body class="min-h-screen bg-[hsl(var(--background))] text-[hsl(var(--foreground))]">
    <div id="root" class="min-h-screen"></div>
    <pre id="error" style="color:#ef4444;padding:8px"></pre>
    <script>
      (function () {
        var source = {{.Code}};
        try {
          var exports = {};
          var module = { exports: exports };
          var stub = function (tag, className) {
            return function (props) {
              return React.createElement(tag, Object.assign({ className: className }, props));
            };
          };
          var Button = stub('button', 'inline-flex items-center justify-center rounded-md bg-[hsl(var(--primary))] text-[hsl(var(--primary-foreground))] px-4 py-2 text-sm font-medium shadow hover:opacity-90 disabled:opacity-50');
          var Input = stub('input', 'flex h-9 w-full rounded-md border px-3 py-1 text-sm bg-[hsl(var(--background))] text-[hsl(var(--foreground))]');
          var Textarea = stub('textarea', 'w-full rounded-md border px-3 py-2 text-sm bg-[hsl(var(--background))] text-[hsl(var(--foreground))]');
          var Separator = stub('div', 'h-px bg-[hsl(var(--border))] my-2');
          var require = function (name) {
            throw new Error('require(' + JSON.stringify(name) + ') is not available in the preview; imports are not supported');
          };
          var factory = new Function('exports', 'module', 'require', 'React', 'Button', 'Input', 'Textarea', 'Separator', source);
          factory(exports, module, require, React, Button, Input, Textarea, Separator);
          var Comp = module.exports && module.exports.default ? module.exports.default : exports.default;
          if (!Comp) throw new Error({{.NoDefaultExport}});
          ReactDOM.createRoot(document.getElementById('root')).render(React.createElement(Comp));
        } catch (e) {
          document.getElementById('error').textContent = (e && e.message) ? e.message : 'preview failed';
        }
      })();
    </script>
  </body>
</html>
`))

var frameTemplate = template.Must(template.New("frame").Parse(
	`<iframe sandbox="{{.Sandbox}}" title="Component preview" style="width:100%;height:{{.Height}}px;border:0" srcdoc="{{.Doc}}"></iframe>`,
))

type documentData struct {
	ReactURL        string
	ReactDOMURL     string
	TailwindURL     string
	Vars            template.CSS
	Code            string
	NoDefaultExport string
}

// Document renders a standalone page that runs script with the stub
// primitives and the tokens as :root custom properties. The script travels
// as a string literal, so it cannot break out of the page markup.
func Document(script transpile.Script, tokens map[string]string) (string, error) {
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, documentData{
		ReactURL:    ReactURL,
		ReactDOMURL: ReactDOMURL,
		TailwindURL: TailwindURL,
		// StyleVariables drops every character that could close the rule.
		Vars:            template.CSS(sandbox.NewSnapshot(tokens).StyleVariables()),
		Code:            script.Code,
		NoDefaultExport: sandbox.MessageNoDefaultExport,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Frame wraps doc in a sandboxed iframe element.
func Frame(doc string, height int) (string, error) {
	if height <= 0 {
		height = 640
	}
	var buf bytes.Buffer
	err := frameTemplate.Execute(&buf, struct {
		Sandbox string
		Height  int
		Doc     string
	}{Sandbox, height, doc})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
