// Package workflow orchestrates the matching pipeline.
//
// Processor owns the per-file sequence: parse the filename, fetch candidates
// from the configured provider, score them, decide, build the artifact,
// persist the item, and hand the file to the organizer. Watcher wraps the
// processor in a single-instance poll loop over the watch directory.
//
// Every invocation of ProcessFile yields a persisted outcome. Failures local
// to one file mark that item failed (or review, for configuration and
// validation errors) and never abort the batch.
package workflow
