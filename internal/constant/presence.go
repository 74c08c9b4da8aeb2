package constant

const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceOffline = "offline"
)

const (
	PresenceColorOnline  = "bg-green-500"
	PresenceColorAway    = "bg-yellow-500"
	PresenceColorOffline = "bg-gray-400"
)
