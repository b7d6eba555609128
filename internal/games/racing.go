package games

import (
	"fmt"
	"math"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// RacingGame simulates a three-lane race; the chosen car pays a flat multiplier.
type RacingGame struct{}

const (
	RacingCars       = 3
	RacingMultiplier = 2.9

	raceLength         = 90.0
	raceBaseSpeed      = 0.5
	raceSpeedVariation = 0.3
	raceZonesPerLane   = 3
	raceSpeedChange    = 0.2
	raceMinSpeed       = 0.1
	raceMaxSpeed       = raceBaseSpeed + raceSpeedVariation*2
	raceZoneMargin     = 5.0
	raceMaxTicks       = 10000
)

// SpeedZone changes a car's speed once when the car passes Position.
type SpeedZone struct {
	Position float64 `json:"position"`
	Type     int     `json:"type"` // +1 accelerate, -1 decelerate
}

// RaceOutcome carries the complete race so rendering can replay it.
// Frames[t][i] is car i+1's position after tick t.
type RaceOutcome struct {
	Winner      int                     `json:"winner"`
	Picked      int                     `json:"picked"`
	StartSpeeds [RacingCars]float64     `json:"start_speeds"`
	Zones       [RacingCars][]SpeedZone `json:"zones"`
	Frames      [][RacingCars]float64   `json:"frames"`
}

func (g *RacingGame) Spec() GameSpec {
	return GameSpec{ID: KindRacing, Name: "Racing", Selection: "car=1..3"}
}

func (g *RacingGame) Validate(params map[string]any) error {
	_, err := racingCar(params)
	return err
}

func (g *RacingGame) Resolve(src engine.Source, _ Stake, params map[string]any) (Outcome, error) {
	car, err := racingCar(params)
	if err != nil {
		return Outcome{}, err
	}

	race, err := SimulateRace(src)
	if err != nil {
		return Outcome{}, err
	}
	race.Picked = car

	out := Outcome{
		Game:    KindRacing,
		Summary: fmt.Sprintf("car %d wins", race.Winner),
		Details: race,
	}
	if race.Winner == car {
		out.Win = true
		out.Factor = RacingMultiplier
	}
	return out, nil
}

// SimulateRace runs the race to completion. Cars are numbered 1..3; when
// several cross the line in the same tick the lowest number wins.
func SimulateRace(src engine.Source) (RaceOutcome, error) {
	var race RaceOutcome
	var speeds, positions [RacingCars]float64
	var triggered [RacingCars][]bool

	for i := 0; i < RacingCars; i++ {
		speeds[i] = raceBaseSpeed + src.Draw()*raceSpeedVariation*2 - raceSpeedVariation
	}
	race.StartSpeeds = speeds

	for i := 0; i < RacingCars; i++ {
		race.Zones[i] = make([]SpeedZone, raceZonesPerLane)
		triggered[i] = make([]bool, raceZonesPerLane)
		for z := 0; z < raceZonesPerLane; z++ {
			pos := src.Draw()*(raceLength-2*raceZoneMargin) + raceZoneMargin
			typ := -1
			if src.Draw() > 0.5 {
				typ = 1
			}
			race.Zones[i][z] = SpeedZone{Position: pos, Type: typ}
		}
	}

	for tick := 0; tick < raceMaxTicks; tick++ {
		winner := 0
		for i := 0; i < RacingCars; i++ {
			for z, zone := range race.Zones[i] {
				if !triggered[i][z] && positions[i] >= zone.Position {
					speeds[i] = math.Max(raceMinSpeed, math.Min(speeds[i]+float64(zone.Type)*raceSpeedChange, raceMaxSpeed))
					triggered[i][z] = true
				}
			}
			if positions[i] < raceLength {
				positions[i] += speeds[i]
			} else if winner == 0 {
				winner = i + 1
			}
		}
		race.Frames = append(race.Frames, positions)
		if winner != 0 {
			race.Winner = winner
			return race, nil
		}
	}
	return race, fmt.Errorf("race did not finish within %d ticks", raceMaxTicks)
}

func racingCar(params map[string]any) (int, error) {
	car, present, err := paramInt(params, "car")
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, invalidSelection("racing requires a car")
	}
	if car < 1 || car > RacingCars {
		return 0, invalidSelection("car must be between 1 and %d, got %d", RacingCars, car)
	}
	return car, nil
}
