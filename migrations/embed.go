// Package migrations embeds the SQL schema applied by golang-migrate at startup.
package migrations

import "embed"

// FS holds one directory of up/down migrations per supported driver.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
