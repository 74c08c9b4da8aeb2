package helper

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/model"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PresenceInput struct {
	IsGroup bool

	// Participants other than the viewer.
	Counterparts []uuid.UUID

	// Users with at least one live websocket connection.
	LiveOnline map[uuid.UUID]bool

	Records map[uuid.UUID]model.PresenceRecord
	Now     time.Time
}

// ResolvePresence never fails; missing data resolves to "Offline" or
// "No one online".
func ResolvePresence(in PresenceInput) model.PresenceLabel {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	if in.IsGroup {
		return resolveGroupPresence(in)
	}

	var counterpart uuid.UUID
	if len(in.Counterparts) > 0 {
		counterpart = in.Counterparts[0]
	}

	if in.LiveOnline[counterpart] {
		return onlineLabel("Online")
	}

	record, ok := in.Records[counterpart]
	if !ok {
		return offlineLabel("Offline")
	}

	switch record.Status {
	case constant.PresenceAway:
		return model.PresenceLabel{Text: "Away", Color: constant.PresenceColorAway}
	case constant.PresenceOnline:
		return onlineLabel("Online")
	}

	if seen := lastSeen(record); seen != nil {
		return offlineLabel("last seen " + FormatRelative(*seen, in.Now))
	}

	return offlineLabel("Offline")
}

func resolveGroupPresence(in PresenceInput) model.PresenceLabel {
	online := 0
	var latest *time.Time

	for _, id := range in.Counterparts {
		record, hasRecord := in.Records[id]
		if in.LiveOnline[id] || (hasRecord && record.Status == constant.PresenceOnline) {
			online++
			continue
		}
		if !hasRecord {
			continue
		}
		if seen := lastSeen(record); seen != nil && (latest == nil || seen.After(*latest)) {
			latest = seen
		}
	}

	switch {
	case online == 1:
		return onlineLabel("1 person online")
	case online > 1:
		return onlineLabel(fmt.Sprintf("%d people online", online))
	case latest != nil:
		return offlineLabel("Active " + FormatRelative(*latest, in.Now))
	default:
		return offlineLabel("No one online")
	}
}

func lastSeen(record model.PresenceRecord) *time.Time {
	if record.LastSeen != nil && !record.LastSeen.IsZero() {
		return record.LastSeen
	}
	if record.UpdatedAt != nil && !record.UpdatedAt.IsZero() {
		return record.UpdatedAt
	}
	return nil
}

func onlineLabel(text string) model.PresenceLabel {
	return model.PresenceLabel{Text: text, Color: constant.PresenceColorOnline, Online: true}
}

func offlineLabel(text string) model.PresenceLabel {
	return model.PresenceLabel{Text: text, Color: constant.PresenceColorOffline}
}
