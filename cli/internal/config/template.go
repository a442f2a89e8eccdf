package config

import "fmt"

// projectTemplate is the document aside init writes. Keys mirror Config; see
// the package doc for precedence.
const projectTemplate = `# aside project configuration
ollama:
  model: %s
  api_url: http://localhost:11434
  timeout: 60s
  max_tokens: 4096

git:
  branch_prefix: aside
  auto_commit: true
  commit_style: conventional

safety:
  max_file_size: 10MB
  allowed_extensions: [.go, .py, .js, .ts, .md]
  ignore_patterns: ["*.pyc", __pycache__, .git, node_modules, .aside]

logging:
  level: info
  file: .aside/session.log
`

// DefaultProjectYAML renders the project config document written at project
// initialization. A non-empty model replaces the default model line.
func DefaultProjectYAML(model string) []byte {
	if model == "" {
		model = _defaultModel
	}
	return []byte(fmt.Sprintf(projectTemplate, model))
}
