// Package ui implements an interactive terminal interface using bubbletea's
// Elm architecture.
//
// The TUI walks a transfer workflow:
//  1. [LibraryView] : browse the source library (albums and playlists)
//  2. [ConfirmView] : confirm the transfer of the selected item
//  3. [TransferView] : watch stage and progress updates in real time
//  4. [ResultView] : summary with counts and retry/quit keys
//
// The [Model] follows the standard Init/Update/View pattern. Progress flows
// through a channel from the transfer orchestrator, so rendering never
// blocks the transfer itself.
package ui
