// Package pipeline orchestrates trade ingestion and bar construction on
// top of the source and storage contracts: bulk backfill, a polling
// daemon, and bar building from the stored trade log, each resumable
// across restarts.
package pipeline
