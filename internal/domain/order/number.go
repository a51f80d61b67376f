package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NumberGenerator produces human-facing order numbers. Uniqueness is enforced by
// the repository, so a generator only needs to make collisions unlikely.
type NumberGenerator interface {
	Next(now time.Time) string
}

type randomNumbers struct{}

// NewNumberGenerator returns numbers shaped TS<yymmdd><6 digits>.
func NewNumberGenerator() NumberGenerator { return randomNumbers{} }

func (randomNumbers) Next(now time.Time) string {
	return fmt.Sprintf("TS%s%06d", now.UTC().Format("060102"), rand.IntN(1_000_000))
}
