// Package internal contains the core implementation packages for wikilight.
//
// # Package Organization
//
//   - highlight: pattern registry, escaping and the highlight engine
//   - styles: the embedded stylesheet and its install/remove registry
//   - debounce: trailing-edge debouncer with a fake clock for tests
//   - editor: editor sessions binding text, overlay and scroll position
//   - renderer: editor and document pages built as templ components
//   - server: HTTP and WebSocket editor server with metrics
//   - watcher: debounced fsnotify watcher for wiki documents
//   - config, logging, errors, tracing, version: ambient support
//
// # Data Flow
//
// Text typed into an editor reaches the server over a WebSocket, is debounced
// per session and highlighted through a cached engine. The resulting HTML is
// pushed back and replaces the overlay underneath the textarea. File changes
// seen by the watcher replace the text of every open session.
package internal
