// Package repositories holds the two things spotsession keeps on disk.
//
//   - [TokenFile] : the refresh secret, one JSON string at a well-known path (refresh_token by default)
//   - [SnapshotRepository] : playlists recorded by `fetch --db`, with their tracks in playlist order
//
// Snapshot tables are created by the embedded migrations in the shared package.
package repositories
