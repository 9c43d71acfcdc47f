package store

import "math/big"

// Record kinds. The persistence layer keys rows by (kind, id).
const (
	KindVolumeStat        = "volume_stat"
	KindFeeStat           = "fee_stat"
	KindTradingStat       = "trading_stat"
	KindAssetTradingStat  = "asset_trading_stat"
	KindOptionContract    = "option_contract"
	KindUserOptionData    = "user_option_data"
	KindQueuedOption      = "queued_option"
	KindLeaderboard       = "leaderboard"
	KindWeeklyLeaderboard = "weekly_leaderboard"
	KindLBFRStat          = "lbfr_stat"
	KindClaimedLBFR       = "claimed_lbfr"
	KindUserRewards       = "user_rewards"
	KindReferralData      = "referral_data"
	KindPoolStat          = "pool_stat"
	KindDashboardStat     = "dashboard_stat"
	KindVolumePerContract = "volume_per_contract"
	KindRevenueAndFee     = "revenue_and_fee"
	KindUser              = "user"
	KindUserStat          = "user_stat"
	KindTokenHolder       = "token_holder"
	KindTokenHolderStat   = "token_holder_stat"
)

// VolumeStat accumulates normalized trade volume for one bucket.
// Timestamp is the block time of the last event that touched the row.
type VolumeStat struct {
	RecordID  string   `json:"id"`
	Period    string   `json:"period"`
	Timestamp int64    `json:"timestamp"`
	Amount    *big.Int `json:"amount"`
}

func (v *VolumeStat) Kind() string { return KindVolumeStat }
func (v *VolumeStat) ID() string   { return v.RecordID }

// FeeStat accumulates normalized settlement fees for one bucket.
type FeeStat struct {
	RecordID  string   `json:"id"`
	Period    string   `json:"period"`
	Timestamp int64    `json:"timestamp"`
	Fee       *big.Int `json:"fee"`
}

func (f *FeeStat) Kind() string { return KindFeeStat }
func (f *FeeStat) ID() string   { return f.RecordID }

// TradingStat carries open interest and PnL for one bucket. The total
// row is the source of truth for open interest; periodic rows mirror
// it at write time.
type TradingStat struct {
	RecordID         string   `json:"id"`
	Period           string   `json:"period"`
	Timestamp        int64    `json:"timestamp"`
	OpenInterest     *big.Int `json:"openInterest"`
	OpenUp           *big.Int `json:"openUp"`
	OpenDown         *big.Int `json:"openDown"`
	Profit           *big.Int `json:"profit"`
	Loss             *big.Int `json:"loss"`
	ProfitCumulative *big.Int `json:"profitCumulative"`
	LossCumulative   *big.Int `json:"lossCumulative"`
}

func (t *TradingStat) Kind() string { return KindTradingStat }
func (t *TradingStat) ID() string   { return t.RecordID }

// AssetTradingStat is TradingStat broken out per option contract.
type AssetTradingStat struct {
	RecordID         string   `json:"id"`
	Period           string   `json:"period"`
	ContractAddress  string   `json:"contractAddress"`
	Profit           *big.Int `json:"profit"`
	Loss             *big.Int `json:"loss"`
	ProfitCumulative *big.Int `json:"profitCumulative"`
	LossCumulative   *big.Int `json:"lossCumulative"`
}

func (a *AssetTradingStat) Kind() string { return KindAssetTradingStat }
func (a *AssetTradingStat) ID() string   { return a.RecordID }

// OptionContract is the registry row for one deployed options market.
type OptionContract struct {
	Address            string   `json:"address"`
	Token              string   `json:"token"`
	Asset              string   `json:"asset"`
	IsPaused           bool     `json:"isPaused"`
	TradeCount         int64    `json:"tradeCount"`
	Volume             *big.Int `json:"volume"`
	OpenUp             *big.Int `json:"openUp"`
	OpenDown           *big.Int `json:"openDown"`
	OpenInterest       *big.Int `json:"openInterest"`
	PayoutForUp        *big.Int `json:"payoutForUp"`
	PayoutForDown      *big.Int `json:"payoutForDown"`
	CurrentUtilization *big.Int `json:"currentUtilization"`
}

func (o *OptionContract) Kind() string { return KindOptionContract }
func (o *OptionContract) ID() string   { return o.Address }

// UserOptionData is the lifecycle row for one opened option. The
// normalized fee fields freeze the open-time conversion so closing
// releases exactly the amounts opening booked, whatever the oracle
// price does in between.
type UserOptionData struct {
	RecordID                string     `json:"id"`
	OptionID                int64      `json:"optionId"`
	ContractAddress         string     `json:"contractAddress"`
	User                    string     `json:"user"`
	State                   TradeState `json:"state"`
	Strike                  *big.Int   `json:"strike"`
	Amount                  *big.Int   `json:"amount"`
	TotalFee                *big.Int   `json:"totalFee"`
	SettlementFee           *big.Int   `json:"settlementFee"`
	NormalizedFee           *big.Int   `json:"normalizedFee"`
	NormalizedSettlementFee *big.Int   `json:"normalizedSettlementFee"`
	IsAbove                 bool       `json:"isAbove"`
	CreationTime            int64      `json:"creationTime"`
	ExpirationTime          int64      `json:"expirationTime"`
	QueueID                 int64      `json:"queueId"`
	QueuedTimestamp         int64      `json:"queuedTimestamp"`
	Lag                     int64      `json:"lag"`
	Payout                  *big.Int   `json:"payout"`
	ExpirationPrice         *big.Int   `json:"expirationPrice"`
}

func (u *UserOptionData) Kind() string { return KindUserOptionData }
func (u *UserOptionData) ID() string   { return u.RecordID }

// QueuedOption is the lifecycle row for one queued trade request.
type QueuedOption struct {
	RecordID           string     `json:"id"`
	QueueID            int64      `json:"queueId"`
	ContractAddress    string     `json:"contractAddress"`
	User               string     `json:"user"`
	State              TradeState `json:"state"`
	Strike             *big.Int   `json:"strike"`
	TotalFee           *big.Int   `json:"totalFee"`
	SlippageTolerance  int64      `json:"slippageTolerance"`
	IsAbove            bool       `json:"isAbove"`
	QueuedTimestamp    int64      `json:"queuedTimestamp"`
	ProcessTime        int64      `json:"processTime"`
	CancellationReason string     `json:"cancellationReason"`
}

func (q *QueuedOption) Kind() string { return KindQueuedOption }
func (q *QueuedOption) ID() string   { return q.RecordID }

// Leaderboard is a user's daily competition row.
type Leaderboard struct {
	RecordID    string   `json:"id"`
	User        string   `json:"user"`
	TimeID      string   `json:"timeId"`
	TotalTrades int64    `json:"totalTrades"`
	TradesWon   int64    `json:"tradesWon"`
	WinRate     int64    `json:"winRate"`
	Volume      *big.Int `json:"volume"`
	NetPnL      *big.Int `json:"netPnL"`
}

func (l *Leaderboard) Kind() string { return KindLeaderboard }
func (l *Leaderboard) ID() string   { return l.RecordID }

// WeeklyLeaderboard adds per-settlement-currency splits to the weekly
// competition row. Volume and NetPnL are cross-currency normalized;
// the suffixed fields hold raw per-token amounts.
type WeeklyLeaderboard struct {
	RecordID    string   `json:"id"`
	User        string   `json:"user"`
	TimeID      string   `json:"timeId"`
	TotalTrades int64    `json:"totalTrades"`
	TradesWon   int64    `json:"tradesWon"`
	WinRate     int64    `json:"winRate"`
	Volume      *big.Int `json:"volume"`
	NetPnL      *big.Int `json:"netPnL"`
	USDCVolume  *big.Int `json:"usdcVolume"`
	ARBVolume   *big.Int `json:"arbVolume"`
	USDCNetPnL  *big.Int `json:"usdcNetPnL"`
	ARBNetPnL   *big.Int `json:"arbNetPnL"`
}

func (l *WeeklyLeaderboard) Kind() string { return KindWeeklyLeaderboard }
func (l *WeeklyLeaderboard) ID() string   { return l.RecordID }

// LBFRStat accumulates a user's loyalty-token allotment for one bucket.
type LBFRStat struct {
	RecordID    string   `json:"id"`
	User        string   `json:"user"`
	Period      string   `json:"period"`
	TimeID      string   `json:"timeId"`
	Volume      *big.Int `json:"volume"`
	VolumeUSDC  *big.Int `json:"volumeUsdc"`
	VolumeARB   *big.Int `json:"volumeArb"`
	LBFRAlloted *big.Int `json:"lbfrAlloted"`
}

func (l *LBFRStat) Kind() string { return KindLBFRStat }
func (l *LBFRStat) ID() string   { return l.RecordID }

// ClaimedLBFR tracks how much alloted loyalty token a user has claimed.
type ClaimedLBFR struct {
	User    string   `json:"user"`
	Claimed *big.Int `json:"claimed"`
}

func (c *ClaimedLBFR) Kind() string { return KindClaimedLBFR }
func (c *ClaimedLBFR) ID() string   { return c.User }

// UserRewards is the protocol-wide daily fee-rebate rollup, keyed by
// day id. Both legs of a referred trade land on the same row.
type UserRewards struct {
	RecordID         string   `json:"id"`
	TimeID           string   `json:"timeId"`
	CumulativeReward *big.Int `json:"cumulativeReward"`
	ReferralDiscount *big.Int `json:"referralDiscount"`
	ReferralReward   *big.Int `json:"referralReward"`
	NFTDiscount      *big.Int `json:"nftDiscount"`
}

func (u *UserRewards) Kind() string { return KindUserRewards }
func (u *UserRewards) ID() string   { return u.RecordID }

// ReferralData is a user's all-time referral ledger, covering both
// sides of the relationship.
type ReferralData struct {
	User                        string   `json:"user"`
	TotalTradesReferred         int64    `json:"totalTradesReferred"`
	TotalVolumeOfReferredTrades *big.Int `json:"totalVolumeOfReferredTrades"`
	TotalRebateEarned           *big.Int `json:"totalRebateEarned"`
	TotalTradingVolume          *big.Int `json:"totalTradingVolume"`
	TotalDiscountAvailed        *big.Int `json:"totalDiscountAvailed"`
}

func (r *ReferralData) Kind() string { return KindReferralData }
func (r *ReferralData) ID() string   { return r.User }

// PoolStat snapshots the liquidity pool for one bucket.
type PoolStat struct {
	RecordID  string   `json:"id"`
	Period    string   `json:"period"`
	Timestamp int64    `json:"timestamp"`
	Amount    *big.Int `json:"amount"`
	Rate      *big.Int `json:"rate"`
}

func (p *PoolStat) Kind() string { return KindPoolStat }
func (p *PoolStat) ID() string   { return p.RecordID }

// DashboardStat is the all-time overview row per settlement token.
type DashboardStat struct {
	Token               string   `json:"token"`
	TotalVolume         *big.Int `json:"totalVolume"`
	TotalFees           *big.Int `json:"totalFees"`
	TotalSettlementFees *big.Int `json:"totalSettlementFees"`
	TotalTrades         int64    `json:"totalTrades"`
}

func (d *DashboardStat) Kind() string { return KindDashboardStat }
func (d *DashboardStat) ID() string   { return d.Token }

// VolumePerContract is hourly volume broken out per market and token.
type VolumePerContract struct {
	RecordID        string   `json:"id"`
	ContractAddress string   `json:"contractAddress"`
	Token           string   `json:"token"`
	TimeID          string   `json:"timeId"`
	Amount          *big.Int `json:"amount"`
	SettlementFee   *big.Int `json:"settlementFee"`
}

func (v *VolumePerContract) Kind() string { return KindVolumePerContract }
func (v *VolumePerContract) ID() string   { return v.RecordID }

// RevenueAndFee is the reward-pool revenue rollup for one bucket.
type RevenueAndFee struct {
	RecordID      string   `json:"id"`
	Period        string   `json:"period"`
	TimeID        string   `json:"timeId"`
	TotalFee      *big.Int `json:"totalFee"`
	SettlementFee *big.Int `json:"settlementFee"`
}

func (r *RevenueAndFee) Kind() string { return KindRevenueAndFee }
func (r *RevenueAndFee) ID() string   { return r.RecordID }

// User marks an account as seen, for unique-user counting.
type User struct {
	Address   string `json:"address"`
	FirstSeen int64  `json:"firstSeen"`
}

func (u *User) Kind() string { return KindUser }
func (u *User) ID() string   { return u.Address }

// UserStat counts users per bucket. On the total row UniqueCount is
// the all-time unique user count; on daily rows it is the number of
// first-time users that day.
type UserStat struct {
	RecordID    string `json:"id"`
	Period      string `json:"period"`
	UniqueCount int64  `json:"uniqueCount"`
}

func (u *UserStat) Kind() string { return KindUserStat }
func (u *UserStat) ID() string   { return u.RecordID }

// TokenHolder is one loyalty-token balance row.
type TokenHolder struct {
	Address string   `json:"address"`
	Balance *big.Int `json:"balance"`
}

func (t *TokenHolder) Kind() string { return KindTokenHolder }
func (t *TokenHolder) ID() string   { return t.Address }

// TokenHolderStat counts addresses with a nonzero loyalty-token balance.
type TokenHolderStat struct {
	RecordID    string `json:"id"`
	HolderCount int64  `json:"holderCount"`
}

func (t *TokenHolderStat) Kind() string { return KindTokenHolderStat }
func (t *TokenHolderStat) ID() string   { return t.RecordID }
