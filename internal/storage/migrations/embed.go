package migrations

import "embed"

// PostgresFS embeds the ledger schema migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the analytics schema migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
