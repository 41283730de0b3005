package web

import "embed"

// Templates embeds the HTML template tree.
//
//go:embed templates
var Templates embed.FS

// Static embeds static assets served under /static/.
//
//go:embed static
var Static embed.FS
