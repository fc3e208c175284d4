// Package config loads and watches editor core settings.
//
// Settings live in a TOML or YAML file. A missing file is not an error:
// loading falls back to defaults, and keys absent from the file keep their
// default values. Parse and validation failures return the defaults
// alongside the error so a caller always holds a usable Settings value.
//
// Watch provides live reload: it monitors the settings file through
// fsnotify, debounces bursts of write events (editors often save through
// a temp-file rename), and invokes the reload handler with freshly parsed
// settings. A file that reloads into an invalid state is counted and
// skipped; the handler only ever sees settings that passed validation.
package config
