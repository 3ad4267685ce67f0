// Package fetcher resolves document references to files under the document root.
//
// References starting with "http" are downloaded into the root under their
// base name, replacing any earlier copy. Downloads go through a token-bucket
// limiter (golang.org/x/time/rate) and are written to a temp file first, so a
// failed download never leaves a truncated document behind. Any other
// reference is looked up in the root by base name.
package fetcher
