package model

// Package model defines domain data structures shared by the relay pipeline:
// format descriptors, fetch tasks with their progress, completed files and
// their chunk sets, session states and the error taxonomy. Mutable records
// guard their own state so they can be read from control paths while the
// owning coordinator updates them.
