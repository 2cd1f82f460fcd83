// Where: assets/runtime_templates_embed.go
// What: Embed runtime Dockerfile and entrypoint templates.
// Why: Images for managed runtimes build without files from the user project.
package assets

import "embed"

//go:embed runtime-templates/*.tmpl
var RuntimeTemplatesFS embed.FS
