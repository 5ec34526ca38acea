// Package config loads the goldensig configuration from config.yaml.
//
// Sections:
//   - server   : HTTP port, API-key auth, CORS origins
//   - dataset  : dataset file, xlsx sheet, reload on change
//   - session  : idle TTL of sessions (default 30m)
//   - stream   : WebSocket push interval (default 5s)
//   - ledger   : approval audit backend (none | sqlite | postgres)
//   - notify   : approval webhooks (slack | teams | http)
//   - log      : level and handler format
//
// Secrets are never stored in the file: key_env, dsn_env and url_env name the
// environment variables that hold them. Load(path) applies defaults before
// unmarshalling, then validates. Watch reloads a file on change.
package config
