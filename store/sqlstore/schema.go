package sqlstore

// The migrations table must exist before sqlutil.Migrate can consult it.
var migrationsTable = map[string]string{
	"sqlite3": `
CREATE TABLE IF NOT EXISTS migrations (
  hash BLOB NOT NULL PRIMARY KEY
);
`,
	"postgres": `
CREATE TABLE IF NOT EXISTS migrations (
  hash BYTEA NOT NULL PRIMARY KEY
);
`,
}

// Append only. Each entry is applied once, in order.
var migrations = map[string][]string{
	"sqlite3": {
		`
CREATE TABLE IF NOT EXISTS kv (
  key TEXT NOT NULL PRIMARY KEY,
  value BLOB NOT NULL
);
`,
	},
	"postgres": {
		`
CREATE TABLE IF NOT EXISTS kv (
  key TEXT COLLATE "C" NOT NULL PRIMARY KEY,
  value BYTEA NOT NULL
);
`,
	},
}
