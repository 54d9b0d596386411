// Package config loads runbooks and CLI settings from disk.
//
// # Runbooks
//
// LoadRunbook selects the decoder from the file extension: .json files are
// JSON, .yaml and .yml files are YAML, and anything else is tried as JSON
// and then as YAML. YAML documents are converted to JSON before decoding so
// both formats go through the same action discriminator.
//
//	rb, err := config.LoadRunbook("identity.yaml")
//	if err != nil {
//	    return err
//	}
//
// Loading is structural only. Call engine.ValidateRunbook, or let the
// Runner do it, to check ids and dependencies.
//
// # Settings
//
// LoadSettings reads the runbookctl TOML settings file. Keys missing from
// the file keep their DefaultSettings value.
//
// # Watching
//
// Watcher reloads a runbook whenever its file is written, debouncing bursts
// of editor writes.
package config
