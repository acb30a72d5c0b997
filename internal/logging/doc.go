// Package logging builds the slog loggers used throughout neuroproc.
//
// Two output formats are supported: a human-oriented console format
// ("TIMESTAMP LEVEL component: message k=v ...") and JSON for log
// collectors. The default "auto" format picks console when stdout is a
// terminal. Components attach themselves with the FieldComponent attr so
// the console handler can hoist the component name into the line prefix.
package logging
