package scripting

// chartPoints is the profit chart size a session settles around.
const chartPoints = 500

// Streaks counts consecutive results. Current is positive while winning
// and negative while losing.
type Streaks struct {
	WinStreak     int `json:"winStreak"`
	LoseStreak    int `json:"loseStreak"`
	CurrentStreak int `json:"currentStreak"`
	HighestStreak int `json:"highestStreak"`
	LowestStreak  int `json:"lowestStreak"`
}

func (s *Streaks) push(win bool) {
	if win {
		s.WinStreak, s.LoseStreak = s.WinStreak+1, 0
		s.CurrentStreak = s.WinStreak
	} else {
		s.WinStreak, s.LoseStreak = 0, s.LoseStreak+1
		s.CurrentStreak = -s.LoseStreak
	}
	s.HighestStreak = max(s.HighestStreak, s.CurrentStreak)
	s.LowestStreak = min(s.LowestStreak, s.CurrentStreak)
}

// Peaks are the extremes seen during a session.
type Peaks struct {
	HighestBet    float64 `json:"highestBet"`
	HighestProfit float64 `json:"highestProfit"`
	LowestProfit  float64 `json:"lowestProfit"`
}

func (p *Peaks) observe(bet, profit float64) {
	p.HighestBet = max(p.HighestBet, bet)
	p.HighestProfit = max(p.HighestProfit, profit)
	p.LowestProfit = min(p.LowestProfit, profit)
}

// Statistics summarises one script session. Balance is the session's own
// running figure; the engine overwrites it with the wallet balance after
// every round.
type Statistics struct {
	Bets     int     `json:"bets"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Wagered  float64 `json:"wagered"`
	Profit   float64 `json:"profit"`
	Balance  float64 `json:"balance"`
	StartBal float64 `json:"startBal"`

	// net of the last round and its stake
	CurrentProfit float64 `json:"currentProfit"`
	PreviousBet   float64 `json:"previousBet"`

	Streaks
	Peaks
}

func NewStatistics(startBalance float64) *Statistics {
	return &Statistics{Balance: startBalance, StartBal: startBalance}
}

// Record folds one finished round into the totals.
func (s *Statistics) Record(r BetResult) {
	net := r.Payout - r.Amount

	s.Bets++
	if r.Win {
		s.Wins++
	} else {
		s.Losses++
	}
	s.Wagered += r.Amount
	s.Profit += net
	s.Balance += net
	s.CurrentProfit = net
	s.PreviousBet = r.Amount

	s.Streaks.push(r.Win)
	s.Peaks.observe(r.Amount, s.Profit)
}

// Reset starts a fresh session from the current balance.
func (s *Statistics) Reset() {
	*s = *NewStatistics(s.Balance)
}

// ChartPoint is one bet on the profit chart.
type ChartPoint struct {
	BetNumber int     `json:"x"`
	Profit    float64 `json:"y"`
	Win       bool    `json:"win"`
}

// ProfitChart keeps a bounded profit curve for long sessions. Once it
// holds twice its target size it drops every other interior point, so the
// first and latest bets always stay on the chart.
type ProfitChart struct {
	points []ChartPoint
	target int
}

func NewProfitChart(target int) *ProfitChart {
	if target < 2 {
		target = 50
	}
	return &ProfitChart{points: make([]ChartPoint, 0, target), target: target}
}

func (c *ProfitChart) Add(p ChartPoint) {
	c.points = append(c.points, p)
	if len(c.points) >= 2*c.target {
		c.thin()
	}
}

func (c *ProfitChart) thin() {
	last := len(c.points) - 1
	kept := c.points[:1]
	for i := 2; i < last; i += 2 {
		kept = append(kept, c.points[i])
	}
	c.points = append(kept, c.points[last])
}

// Points returns a copy of the curve.
func (c *ProfitChart) Points() []ChartPoint {
	return append([]ChartPoint(nil), c.points...)
}

func (c *ProfitChart) Clear() { c.points = c.points[:0] }
