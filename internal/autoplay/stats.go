package autoplay

import "github.com/shopspring/decimal"

// Statistics tracks a session.
type Statistics struct {
	Spins     int             `json:"spins"`
	FreeSpins int             `json:"freeSpinsPlayed"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	Jackpots  int             `json:"jackpots"`
	Wagered   decimal.Decimal `json:"wagered"`
	Won       decimal.Decimal `json:"won"`
	Profit    decimal.Decimal `json:"profit"`
	Balance   decimal.Decimal `json:"balance"`
	StartBal  decimal.Decimal `json:"startBalance"`

	WinStreak     int `json:"winStreak"`
	LoseStreak    int `json:"loseStreak"`
	CurrentStreak int `json:"currentStreak"`
	HighestStreak int `json:"highestStreak"`
	LowestStreak  int `json:"lowestStreak"`

	HighestBet    decimal.Decimal `json:"highestBet"`
	HighestProfit decimal.Decimal `json:"highestProfit"`
	LowestProfit  decimal.Decimal `json:"lowestProfit"`
	BiggestWin    decimal.Decimal `json:"biggestWin"`
}

func newStatistics(balance decimal.Decimal) *Statistics {
	return &Statistics{Balance: balance, StartBal: balance}
}

// RTP is won / wagered over paid spins.
func (s *Statistics) RTP() float64 {
	if s.Wagered.IsZero() {
		return 0
	}
	f, _ := s.Won.Div(s.Wagered).Float64()
	return f
}

// record applies one spin. A free spin wagers nothing.
func (s *Statistics) record(bet, win decimal.Decimal, free, jackpot bool) {
	s.Spins++
	stake := bet
	if free {
		s.FreeSpins++
		stake = decimal.Zero
	}
	net := win.Sub(stake)
	s.Wagered = s.Wagered.Add(stake)
	s.Won = s.Won.Add(win)
	s.Profit = s.Profit.Add(net)
	s.Balance = s.Balance.Add(net)
	if jackpot {
		s.Jackpots++
	}

	if win.IsPositive() {
		s.Wins++
		s.WinStreak++
		s.LoseStreak = 0
		s.CurrentStreak = s.WinStreak
	} else {
		s.Losses++
		s.LoseStreak++
		s.WinStreak = 0
		s.CurrentStreak = -s.LoseStreak
	}

	if stake.GreaterThan(s.HighestBet) {
		s.HighestBet = stake
	}
	if win.GreaterThan(s.BiggestWin) {
		s.BiggestWin = win
	}
	if s.Profit.GreaterThan(s.HighestProfit) {
		s.HighestProfit = s.Profit
	}
	if s.Profit.LessThan(s.LowestProfit) {
		s.LowestProfit = s.Profit
	}
	if s.CurrentStreak > s.HighestStreak {
		s.HighestStreak = s.CurrentStreak
	}
	if s.CurrentStreak < s.LowestStreak {
		s.LowestStreak = s.CurrentStreak
	}
}
