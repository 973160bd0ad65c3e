// Package domain contains entity without logic, just meta-data
package domain

type RoomID string

// MaxRoomOccupancy is the hard cap on participants per room. The whole
// control protocol is pairwise, so a third joiner is always rejected.
const MaxRoomOccupancy = 2
