// Package paymentsmigrations embeds the payments-side schema migrations.
package paymentsmigrations

import "embed"

//go:embed *.sql
var FS embed.FS
