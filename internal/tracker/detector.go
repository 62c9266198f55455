package tracker

import "github.com/nowdeck/nowdeck/internal/domain"

// sameItem reports whether two snapshots describe the same logical media
// item: title, artist and owning app all match exactly. Album, position and
// duration are deliberately left out so that timeline ticking during ongoing
// playback never counts as a new item.
func sameItem(a, b domain.MediaSnapshot) bool {
	return a.Title == b.Title && a.Artist == b.Artist && a.AppName == b.AppName
}

// isChange reports whether the transition prev -> cur must be recorded as a
// ChangeEvent. Either side may be nil, meaning "no session". Rules:
// a first snapshot, a different logical item, a status transition, and the
// session appearing or disappearing are all changes; a repeated gone-marker
// and mere position movement on the same item and status are not.
func isChange(prev, cur *domain.MediaSnapshot) bool {
	switch {
	case prev == nil && cur == nil:
		return false
	case prev == nil || cur == nil:
		return true
	case !sameItem(*prev, *cur):
		return true
	default:
		return prev.Status != cur.Status
	}
}
