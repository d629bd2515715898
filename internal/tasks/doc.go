// Package tasks holds the engine behind tunesync: the matcher that resolves
// source items to destination catalog entries, the transfer orchestrator,
// the sync scheduler, and the library differ.
package tasks
