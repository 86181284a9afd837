// Package database stores crawl run history in SQLite via modernc.org/sqlite.
//
// Each saved run keeps its full result as JSON, one edge row per visited URL
// and one row per failure, so history can be listed per origin, two runs of
// an origin can be compared, and a single URL can be traced across runs.
package database
