// Package ordersmigrations embeds the orders-side schema migrations.
package ordersmigrations

import "embed"

//go:embed *.sql
var FS embed.FS
