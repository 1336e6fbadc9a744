package riot

// Account is the Account-v1 response used to resolve a riot id to a puuid.
type Account struct {
	Puuid    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// Match is a Match-v5 payload. Only the fields the ingestion pipeline reads
// are mapped; optional counters are pointers so an absent field stays nil
// instead of collapsing to zero.
type Match struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"`
}

type MatchInfo struct {
	GameStartTimestamp int64         `json:"gameStartTimestamp"` // milliseconds
	GameDuration       int64         `json:"gameDuration"`
	QueueID            *int64        `json:"queueId"`
	GameMode           string        `json:"gameMode"`
	GameType           string        `json:"gameType"`
	MapID              *int64        `json:"mapId"`
	GameVersion        string        `json:"gameVersion"`
	PlatformID         string        `json:"platformId"`
	Participants       []Participant `json:"participants"`
}

type Participant struct {
	Puuid string `json:"puuid"`

	Win          bool    `json:"win"`
	TeamID       *int64  `json:"teamId"`
	Role         *string `json:"role"`
	Lane         *string `json:"lane"`
	TeamPosition *string `json:"teamPosition"`

	ChampionID   *int64 `json:"championId"`
	ChampionName string `json:"championName"`

	Kills   int64 `json:"kills"`
	Deaths  int64 `json:"deaths"`
	Assists int64 `json:"assists"`

	TotalMinionsKilled   int64 `json:"totalMinionsKilled"`
	NeutralMinionsKilled int64 `json:"neutralMinionsKilled"`

	GoldEarned *int64 `json:"goldEarned"`
	GoldSpent  *int64 `json:"goldSpent"`

	TotalDamageDealtToChampions *int64 `json:"totalDamageDealtToChampions"`
	TotalDamageTaken            *int64 `json:"totalDamageTaken"`

	VisionScore *int64 `json:"visionScore"`
	WardsPlaced *int64 `json:"wardsPlaced"`
	WardsKilled *int64 `json:"wardsKilled"`
	TurretKills *int64 `json:"turretKills"`

	TotalTimeSpentDead *int64 `json:"totalTimeSpentDead"`
}

// ParticipantByPuuid returns the participant entry for a puuid, or nil when
// the player is not in the match.
func (m *Match) ParticipantByPuuid(puuid string) *Participant {
	for i := range m.Info.Participants {
		if m.Info.Participants[i].Puuid == puuid {
			return &m.Info.Participants[i]
		}
	}
	return nil
}
