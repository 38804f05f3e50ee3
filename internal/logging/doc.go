// Package logging provides structured file-based logging with rotation for
// FlexSearch. Logs are written as JSON to <home>/.flexsearch/logs/ and,
// optionally, mirrored to stderr.
package logging
