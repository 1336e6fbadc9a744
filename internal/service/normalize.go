package service

import (
	"strings"

	"lol-stats-tracker/internal/domain"
	"lol-stats-tracker/internal/riot"
)

// normalizeMatch maps a Match-v5 payload onto the shared match row.
func normalizeMatch(routing string, payload *riot.Match) *domain.Match {
	info := payload.Info

	m := &domain.Match{
		MatchID:  payload.Metadata.MatchID,
		Routing:  routing,
		Platform: info.PlatformID,
		QueueID:  info.QueueID,
		GameMode: info.GameMode,
		GameType: info.GameType,
		MapID:    info.MapID,
		Patch:    patchFromVersion(info.GameVersion),
	}

	if info.GameStartTimestamp > 0 {
		ts := info.GameStartTimestamp / 1000
		m.GameStartTS = &ts
	}
	if info.GameDuration > 0 {
		d := info.GameDuration
		m.DurationS = &d
	}
	return m
}

// normalizeStat maps one participant entry onto a fact row. The denormalized
// game_start_ts/queue_id are filled from the persisted match row at commit
// time, never from this payload. Absent optional counters stay nil so "not
// reported" is distinguishable from "reported as zero".
func normalizeStat(matchID string, p *riot.Participant) domain.PlayerMatchStat {
	return domain.PlayerMatchStat{
		Puuid:   p.Puuid,
		MatchID: matchID,

		Win:      p.Win,
		TeamID:   p.TeamID,
		Role:     p.Role,
		Lane:     p.Lane,
		Position: p.TeamPosition,

		ChampionID:   p.ChampionID,
		ChampionName: p.ChampionName,

		Kills:   p.Kills,
		Deaths:  p.Deaths,
		Assists: p.Assists,

		CS:         p.TotalMinionsKilled + p.NeutralMinionsKilled,
		GoldEarned: p.GoldEarned,
		GoldSpent:  p.GoldSpent,

		DmgToChamps: p.TotalDamageDealtToChampions,
		DmgTaken:    p.TotalDamageTaken,

		VisionScore: p.VisionScore,
		WardsPlaced: p.WardsPlaced,
		WardsKilled: p.WardsKilled,
		TurretKills: p.TurretKills,

		TimeDeadS: p.TotalTimeSpentDead,
	}
}

// patchFromVersion reduces a full game version like "14.3.558.4869" to the
// patch "14.3".
func patchFromVersion(version string) string {
	if version == "" {
		return ""
	}
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
