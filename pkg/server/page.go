package server

import (
	"html/template"
	"net/http"

	"github.com/ST2Projects/vision-runner/pkg/modelinfo"
	"github.com/ST2Projects/vision-runner/pkg/vision"
)

// pageData feeds the index template.
type pageData struct {
	Model         *modelinfo.Info
	DefaultPrompt string
	MaxTokens     sliderSpec
	NumTags       sliderSpec
}

// sliderSpec describes one numeric slider on the form.
type sliderSpec struct {
	Min     int
	Max     int
	Step    int
	Default int
}

// handleIndex handles GET / requests and serves the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := pageData{
		Model:         s.info,
		DefaultPrompt: vision.DefaultDescribePrompt,
		MaxTokens: sliderSpec{
			Min:     vision.MinMaxTokens,
			Max:     vision.MaxMaxTokens,
			Step:    64,
			Default: vision.DefaultMaxTokens,
		},
		NumTags: sliderSpec{
			Min:     vision.MinTagCount,
			Max:     vision.MaxTagCount,
			Step:    1,
			Default: vision.DefaultTagCount,
		},
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.Warnln("Error while rendering index page:", err)
	}
}

var indexTemplate = template.Must(template.New("index").Parse(indexPage))

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Image Recognition API</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #0f0f0f;
            color: #e0e0e0;
            line-height: 1.6;
        }
        .container { max-width: 960px; margin: 0 auto; padding: 24px 16px; }
        h1 { font-size: 28px; font-weight: 600; color: #fff; }
        .subtitle { color: #999; margin-bottom: 24px; }
        .tabs { display: flex; gap: 8px; margin-bottom: 16px; }
        .tab {
            background: #1a1a1a;
            color: #999;
            border: 1px solid #2a2a2a;
            border-radius: 4px 4px 0 0;
            padding: 8px 16px;
            font-size: 14px;
            cursor: pointer;
        }
        .tab.active { background: #2a2a2a; color: #fff; }
        .panel {
            display: none;
            background: #1a1a1a;
            border: 1px solid #2a2a2a;
            border-radius: 0 4px 4px 4px;
            padding: 16px;
        }
        .panel.active { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
        @media (max-width: 720px) { .panel.active { grid-template-columns: 1fr; } }
        label { display: block; font-size: 13px; color: #999; margin: 12px 0 4px; }
        input[type="file"], input[type="text"], textarea {
            width: 100%;
            background: #2a2a2a;
            color: #e0e0e0;
            border: 1px solid #3a3a3a;
            padding: 6px 12px;
            border-radius: 4px;
            font-size: 14px;
        }
        input:focus, textarea:focus { outline: none; border-color: #4a9eff; }
        input[type="range"] { width: calc(100% - 48px); vertical-align: middle; }
        .slider-value { display: inline-block; width: 40px; text-align: right; color: #e0e0e0; }
        .btn {
            background: #4a9eff;
            color: #fff;
            border: none;
            border-radius: 4px;
            padding: 8px 20px;
            font-size: 14px;
            font-weight: 600;
            cursor: pointer;
            margin-top: 16px;
        }
        .btn:hover { background: #3a8eef; }
        .btn:disabled { background: #2a5a8f; cursor: wait; }
        .output {
            width: 100%;
            min-height: 240px;
            background: #0f0f0f;
            border: 1px solid #2a2a2a;
            border-radius: 4px;
            padding: 12px;
            font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
            font-size: 13px;
            white-space: pre-wrap;
            word-break: break-word;
        }
        .footer {
            border-top: 1px solid #2a2a2a;
            margin-top: 24px;
            padding-top: 12px;
            font-size: 13px;
            color: #999;
        }
        .footer strong { color: #e0e0e0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Image Recognition API</h1>
        <p class="subtitle">Upload an image for detailed analysis or tag generation using {{.Model.Name}}.</p>

        <div class="tabs">
            <button class="tab active" id="tab-describe" onclick="showTab('describe')">Describe Image</button>
            <button class="tab" id="tab-tags" onclick="showTab('tags')">Generate Tags</button>
        </div>

        <div class="panel active" id="panel-describe">
            <div>
                <label for="describe-image">Upload Image</label>
                <input type="file" id="describe-image" accept="image/*">
                <label for="prompt">Custom Prompt</label>
                <textarea id="prompt" rows="4" placeholder="Describe this image...">{{.DefaultPrompt}}</textarea>
                <label for="max-tokens">Max Tokens</label>
                <input type="range" id="max-tokens" min="{{.MaxTokens.Min}}" max="{{.MaxTokens.Max}}"
                    step="{{.MaxTokens.Step}}" value="{{.MaxTokens.Default}}"
                    oninput="document.getElementById('max-tokens-value').textContent = this.value">
                <span class="slider-value" id="max-tokens-value">{{.MaxTokens.Default}}</span>
                <br>
                <button class="btn" id="describe-btn" onclick="submitRequest('describe')">Analyze</button>
            </div>
            <div>
                <label for="describe-output">Description</label>
                <div class="output" id="describe-output"></div>
            </div>
        </div>

        <div class="panel" id="panel-tags">
            <div>
                <label for="tags-image">Upload Image</label>
                <input type="file" id="tags-image" accept="image/*">
                <label for="num-tags">Number of Tags</label>
                <input type="range" id="num-tags" min="{{.NumTags.Min}}" max="{{.NumTags.Max}}"
                    step="{{.NumTags.Step}}" value="{{.NumTags.Default}}"
                    oninput="document.getElementById('num-tags-value').textContent = this.value">
                <span class="slider-value" id="num-tags-value">{{.NumTags.Default}}</span>
                <br>
                <button class="btn" id="tags-btn" onclick="submitRequest('tags')">Generate Tags</button>
            </div>
            <div>
                <label for="tags-output">Tags (JSON)</label>
                <div class="output" id="tags-output"></div>
            </div>
        </div>

        <div class="footer">
            <strong>Model:</strong> {{.Model.Name}}{{if .Model.License}} | <strong>License:</strong> {{.Model.License}}{{end}}
        </div>
    </div>

    <script>
        function showTab(name) {
            ['describe', 'tags'].forEach(function(tab) {
                document.getElementById('tab-' + tab).classList.toggle('active', tab === name);
                document.getElementById('panel-' + tab).classList.toggle('active', tab === name);
            });
        }

        async function submitRequest(kind) {
            const btn = document.getElementById(kind + '-btn');
            const out = document.getElementById(kind + '-output');
            const files = document.getElementById(kind + '-image').files;

            const form = new FormData();
            if (files.length > 0) {
                form.append('image', files[0]);
            }
            if (kind === 'describe') {
                form.append('prompt', document.getElementById('prompt').value);
                form.append('max_tokens', document.getElementById('max-tokens').value);
            } else {
                form.append('num_tags', document.getElementById('num-tags').value);
            }

            btn.disabled = true;
            out.textContent = 'Working...';
            try {
                const url = kind === 'describe' ? '/api/analyze' : '/api/tags';
                const resp = await fetch(url, { method: 'POST', body: form });
                if (!resp.ok) {
                    out.textContent = 'Error ' + resp.status + ': ' + await resp.text();
                    return;
                }
                const body = await resp.json();
                if (kind === 'describe') {
                    out.textContent = body.description;
                } else {
                    out.textContent = body.tags ? JSON.stringify(body.tags, null, 2) : (body.raw || '');
                }
            } catch (err) {
                out.textContent = 'Error: ' + err;
            } finally {
                btn.disabled = false;
            }
        }
    </script>
</body>
</html>
`
