// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI shows one batch (a track, album or playlist) in two views:
//  1. [LoadingView] : Fetch the collection from the catalog
//  2. [BatchView] : Per-track status with an aggregate progress bar
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Track state transitions flow from the [tasks.Orchestrator] through a channel, so downloads never block rendering.
//
// Keyboard: enter downloads (or retries) the selected track, a downloads every idle track, q quits.
// Contextual help is displayed via charmbracelet/bubbles/help.
package ui
