package tasks

import (
	"fmt"

	"github.com/desertthunder/spotsession/internal/models"
)

// ProgressUpdate represents a progress event of a workflow step.
//
// Used to send updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Workflow phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Phase enumerates the steps of a run.
type Phase int

const (
	LoadToken Phase = iota
	Authorize
	SaveToken
	RefreshSession
	FetchPlaylist
	FetchTracks
	WriteOutput
)

func (p Phase) String() string {
	switch p {
	case LoadToken:
		return "load_token"
	case Authorize:
		return "authorize"
	case SaveToken:
		return "save_token"
	case RefreshSession:
		return "refresh_session"
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchTracks:
		return "fetch_tracks"
	case WriteOutput:
		return "write_output"
	default:
		return ""
	}
}

func loadTokenUpdate(path Path) ProgressUpdate {
	return ProgressUpdate{Phase: LoadToken, Step: 1, Total: 1, Message: fmt.Sprintf("Token check chose the %s path", path), Data: path}
}

func authorizeUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: Authorize, Step: 1, Total: 1, Message: "Waiting for authorization..."}
}

func saveTokenUpdate(err error) ProgressUpdate {
	msg := "Saved refresh token"
	if err != nil {
		msg = "Could not save refresh token"
	}
	return ProgressUpdate{Phase: SaveToken, Step: 1, Total: 1, Message: msg, Data: err}
}

func refreshSessionUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: RefreshSession, Step: 1, Total: 1, Message: "Refreshing access token..."}
}

func fetchPlaylistUpdate(step int, playlist *models.Playlist) ProgressUpdate {
	if playlist == nil {
		return ProgressUpdate{Phase: FetchPlaylist, Step: step, Total: 2, Message: "Fetching playlist from Spotify..."}
	}
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    step,
		Total:   2,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", playlist.Name, playlist.TrackCount),
		Data:    playlist,
	}
}

func fetchTracksUpdate(count int) ProgressUpdate {
	return ProgressUpdate{Phase: FetchTracks, Step: 1, Total: 1, Message: fmt.Sprintf("Fetched %d tracks", count), Data: count}
}

func writeOutputUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{Phase: WriteOutput, Step: step, Total: total, Message: fmt.Sprintf("Writing output %d/%d", step, total)}
}
