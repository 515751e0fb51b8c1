package checkout

import (
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// OrderNumberGenerator mints sortable, unique order numbers.
type OrderNumberGenerator interface {
	Next(at time.Time) (string, error)
}

type ulidGenerator struct {
	entropy io.Reader
}

// NewOrderNumberGenerator returns a ULID generator: a millisecond timestamp
// followed by monotonic entropy, so numbers minted in the same millisecond
// still sort in creation order.
func NewOrderNumberGenerator() OrderNumberGenerator {
	return ulidGenerator{entropy: ulid.DefaultEntropy()}
}

func (g ulidGenerator) Next(at time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(at), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
