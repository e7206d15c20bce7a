// Package cmd provides the command-line interface for wikilight.
//
// This package implements all CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - highlight: Highlight a MediaWiki document to HTML
//   - serve: Start the live editor with a highlighted overlay
//   - watch: Re-highlight wiki files into HTML pages as they change
//   - styles: Print the stylesheet or audit it against the engine
//   - rules: List the highlighting rules
//   - config: Show or validate the configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Highlight a file into a standalone page
//	wikilight highlight Main_Page.wiki --page > Main_Page.html
//
//	// Highlight from stdin
//	echo "'''bold'''" | wikilight highlight
//
//	// Edit a document with live highlighting, reloading on disk changes
//	wikilight serve Main_Page.wiki --port 3000
//
//	// Keep a directory of highlighted pages up to date
//	wikilight watch ./pages --out ./highlighted
//
//	// List rules as YAML
//	wikilight rules -o yaml
//
// # Configuration
//
// Commands read .wikilight.yml, WIKILIGHT_* environment variables and their
// flags, in increasing order of precedence. WIKILIGHT_CONFIG_FILE or --config
// names a different file.
package cmd
