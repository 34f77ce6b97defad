// Package organizer moves decided files into their final locations.
//
// Accepted files are renamed into the library under a per-site directory
// using the provider's canonical metadata. Ambiguous files are parked in the
// ambiguous directory next to a JSON sidecar describing the surviving
// candidates so a human can resolve them later. Rejected and failed files
// move to the failed directory unchanged. Moves survive cross-filesystem
// destinations and never overwrite existing files.
package organizer
