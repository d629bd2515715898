// Package models defines the data model for the library mirroring service.
//
// Catalog items (albums, playlists, tracks) are plain value types shared by
// every service implementation; a [LibrarySnapshot] captures a user's whole
// library for one service at a point in time and is never mutated after
// capture. [TransferRecord] rows form the persisted audit trail for
// cross-service transfers.
package models
