package model

// Package model defines domain data structures used across the app: download
// tasks, playlist entries, probe results, and status enums. Structures carry
// no behavior beyond display helpers and explicit state transitions.
