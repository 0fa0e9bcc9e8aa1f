// Package ui holds the console's presentational primitives: toasts, a modal
// stack, pagination, progress bars, spinners and SVG mini charts. Renderers
// return html/template.HTML so they can be embedded in gateway pages.
package ui
