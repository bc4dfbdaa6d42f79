package platform

// Package platform contains filesystem glue for the relay pipeline: per-task
// download directories, resolution of files the backend renamed, and cleanup
// of partial downloads, parts and directories left empty.
