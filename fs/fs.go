// Package appfs embeds the app's static assets: SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates
var FS embed.FS
