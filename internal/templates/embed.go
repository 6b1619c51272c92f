// Package templates holds the server-rendered pages. Every page is parsed
// together with base.html and executed through its "base" template.
package templates

import "embed"

//go:embed *.html
var Files embed.FS
