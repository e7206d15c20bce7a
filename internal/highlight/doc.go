// Package highlight turns MediaWiki markup into escaped HTML decorated with
// <span class="mw-..."> wrappers.
//
// The visible text of the output is always the input text: rules only add
// wrappers and never drop, reorder or normalise characters. That is what lets
// an editor lay the output over a transparent textarea and keep the two
// aligned character for character.
//
// Rules run in descending priority. Each rule sees the previous rule's
// output, may wrap whole earlier wrappers, and never splits one.
package highlight
