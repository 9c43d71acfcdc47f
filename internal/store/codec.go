package store

import (
	"encoding/json"
	"fmt"
)

// Decode unmarshals a persisted aggregate payload back into its typed
// record. Used on startup to rebuild the in-memory store from Postgres.
func Decode(kind string, payload []byte) (Entity, error) {
	var e Entity
	switch kind {
	case KindVolumeStat:
		e = &VolumeStat{}
	case KindFeeStat:
		e = &FeeStat{}
	case KindTradingStat:
		e = &TradingStat{}
	case KindAssetTradingStat:
		e = &AssetTradingStat{}
	case KindOptionContract:
		e = &OptionContract{}
	case KindUserOptionData:
		e = &UserOptionData{}
	case KindQueuedOption:
		e = &QueuedOption{}
	case KindLeaderboard:
		e = &Leaderboard{}
	case KindWeeklyLeaderboard:
		e = &WeeklyLeaderboard{}
	case KindLBFRStat:
		e = &LBFRStat{}
	case KindClaimedLBFR:
		e = &ClaimedLBFR{}
	case KindUserRewards:
		e = &UserRewards{}
	case KindReferralData:
		e = &ReferralData{}
	case KindPoolStat:
		e = &PoolStat{}
	case KindDashboardStat:
		e = &DashboardStat{}
	case KindVolumePerContract:
		e = &VolumePerContract{}
	case KindRevenueAndFee:
		e = &RevenueAndFee{}
	case KindUser:
		e = &User{}
	case KindUserStat:
		e = &UserStat{}
	case KindTokenHolder:
		e = &TokenHolder{}
	case KindTokenHolderStat:
		e = &TokenHolderStat{}
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return e, nil
}
