// Package viz renders pCDM displacement fields in the terminal.
//
//   - [Heatmap]: a shaded map of one displacement component
//   - [Model]: an interactive Bubble Tea view that recomputes on every change
//   - Theme selection with 4 built-in diverging color scales
//
// # Key Bindings
//
//	Tab/⇧Tab - Select source parameter
//	↑↓ / KJ  - Increase/decrease selected parameter
//	C        - Cycle displayed component
//	T        - Cycle color themes
//	R        - Reset parameters
//	?        - Show help overlay
//	Q        - Quit
package viz
