package games

import (
	"math"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// MinesBoardSizes lists the square board dimensions on offer.
var MinesBoardSizes = []int{3, 5, 7, 9}

const (
	minesLargeBoard    = 9
	minesLargeMinMines = 2
)

// ValidateMinesBoard checks dimensions and mine count for a new board.
func ValidateMinesBoard(rows, cols, mineCount int) error {
	if rows != cols {
		return invalidSelection("mines board must be square, got %dx%d", rows, cols)
	}
	supported := false
	for _, n := range MinesBoardSizes {
		if rows == n {
			supported = true
			break
		}
	}
	if !supported {
		return invalidSelection("unsupported mines board %dx%d", rows, cols)
	}
	total := rows * cols
	if mineCount < 1 || mineCount >= total {
		return invalidSelection("mine count must be between 1 and %d, got %d", total-1, mineCount)
	}
	if rows == minesLargeBoard && mineCount < minesLargeMinMines {
		return invalidSelection("a %dx%d board needs at least %d mines", rows, cols, minesLargeMinMines)
	}
	return nil
}

// FairMultiplier is the inverse survival probability after k safe reveals
// on a board of total cells holding mines. No house edge is applied.
func FairMultiplier(total, mines, k int) float64 {
	if k <= 0 {
		return 1
	}
	survival := 1.0
	for i := 0; i < k; i++ {
		safe := total - mines - i
		if safe <= 0 {
			return math.Inf(1)
		}
		survival *= float64(safe) / float64(total-i)
	}
	return 1 / survival
}

// PlaceMines picks mineCount distinct cells out of total by repeatedly
// drawing an index into the shrinking pool of remaining cells. Cells are
// numbered row*cols+col.
func PlaceMines(src engine.Source, total, mineCount int) []int {
	pool := make([]int, total)
	for i := range pool {
		pool[i] = i
	}
	mines := make([]int, 0, mineCount)
	for i := 0; i < mineCount && len(pool) > 0; i++ {
		index := engine.UniformIndex(src.Draw(), len(pool))
		mines = append(mines, pool[index])
		pool = append(pool[:index], pool[index+1:]...)
	}
	return mines
}
