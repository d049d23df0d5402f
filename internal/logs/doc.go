// Package logs reads the daemon log file for the CLI.
//
// Last returns the trailing lines with a ring buffer so large files are never
// held in memory. Follow polls from an offset and restarts from the top when
// the file shrinks, which covers truncation by an external rotator.
package logs
