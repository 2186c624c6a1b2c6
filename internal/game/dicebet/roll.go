// Package dicebet rolls the dice that decide a round.
package dicebet

import "math/rand"

// Roll returns two random dice values in [1,6].
func Roll() (int, int) {
	return rand.Intn(6) + 1, rand.Intn(6) + 1
}
