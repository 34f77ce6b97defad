// Package textutil provides text processing utilities for fingerprinting,
// similarity, and filename sanitization.
//
// The primary use cases are:
//   - Creating token-based fingerprints from scene titles for comparison
//   - Computing cosine similarity between fingerprints
//   - Sanitizing scene titles and path segments for safe filesystem use
//
// Fingerprints use term frequency vectors normalized for efficient comparison.
// The tokenization process folds unicode to its base form, lowercases text,
// splits on non-alphanumeric characters, and filters tokens shorter than 2
// characters.
package textutil
