package writer

import "time"

// ProgressRecord is the analytics mirror of one player, kept in the player_progress table.
type ProgressRecord struct {
	SKU             string    `db:"sku"`
	Nickname        string    `db:"nickname"`
	Level           int       `db:"level"`
	Life            int       `db:"life"`
	MaxLife         int       `db:"max_life"`
	ClientVersion   string    `db:"client_version"`
	FirstAchievedAt time.Time `db:"first_achieved_at"`
	LastEventType   string    `db:"last_event_type"`
	LastEventAt     time.Time `db:"last_event_at"`
	Version         int64     `db:"version"`
}

var progressColumns = []string{
	"sku", "nickname", "level", "life", "max_life", "client_version",
	"first_achieved_at", "last_event_type", "last_event_at", "version",
}

func (r ProgressRecord) values() []interface{} {
	return []interface{}{
		r.SKU, r.Nickname, r.Level, r.Life, r.MaxLife, r.ClientVersion,
		r.FirstAchievedAt, r.LastEventType, r.LastEventAt, r.Version,
	}
}

// Coalesce keeps the highest-version record per SKU, in first-seen order. A single upsert
// statement cannot touch the same row twice.
func Coalesce(records []ProgressRecord) []ProgressRecord {
	index := make(map[string]int, len(records))
	out := make([]ProgressRecord, 0, len(records))
	for _, r := range records {
		i, seen := index[r.SKU]
		if !seen {
			index[r.SKU] = len(out)
			out = append(out, r)
			continue
		}
		if r.Version >= out[i].Version {
			out[i] = r
		}
	}
	return out
}
