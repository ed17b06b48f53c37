// Package top implements the interactive pgcenter dashboard.
//
// The dashboard shows one screen at a time: a header with host load, CPU
// usage and the server's activity summary, followed by the sorted table of
// the screen's active statistics context. Up to eight screens, each with its
// own connection, refresh in the background.
//
// # Architecture
//
// The package uses the Bubble Tea framework, which follows The Elm Architecture
// (Model-Update-View pattern):
//
//   - Model: Holds UI state (latest table per screen, host stats, prompt, mode)
//   - Update: Processes messages (keystrokes, refreshed tables, host samples)
//   - View: Renders the current state to a string for display
//
// # Message Flow
//
// Refreshing happens outside the Bubble Tea loop:
//
//  1. screen.Manager runs one goroutine per screen and publishes tables
//  2. waitForTable() turns each published table into a tableMsg
//  3. sysstat.Sampler runs on its own cadence and publishes hostMsg
//  4. View() re-renders the current screen
//
// Operator actions that touch the server (signals, reload, settings) run as
// tea.Cmd functions and report back with a statusMsg.
package top
