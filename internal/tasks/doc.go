// Package tasks runs the two-path session workflow.
//
// # Bootstrap
//
// [Engine.Bootstrap] only asks the [TokenStore] for a refresh secret. Any failure to load one, whether
// the file is missing, unreadable or corrupt, selects [PathNewSession]; the reason is logged at debug
// level and is not otherwise reported.
//
// # New session
//
// [Engine.NewSession] runs the [Authorizer], saves the session's refresh secret and tells the operator
// on stdout to run the program again. Nothing is fetched on this path. A failed save is a warning.
//
// # Resume
//
// [Engine.Resume] needs a playlist ID. It rebuilds an auto-refreshing session from the secret, fetches
// the playlist metadata and then every page of tracks, logs the track count and hands the result to
// each configured [ExportSink]. Tracks are not printed unless a sink does so.
//
// # Progress Reporting
//
// Steps are reported as [ProgressUpdate] values on an optional channel. Sends never block.
package tasks
