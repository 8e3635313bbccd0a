/**
 * @description
 * Verifiable winner selection for prize rounds. A round publishes the SHA-256
 * commitment of a random seed when it opens and reveals the seed when it is
 * drawn. Winners are picked by an HMAC-SHA256 counter DRBG keyed by the seed,
 * so anyone holding the revealed seed and the entry list can recompute them.
 *
 * @notes
 * - Entries are ordered by account id bytes before selection.
 * - Selection is weighted by entry count and without replacement.
 */

package draw

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

// SeedSize is the number of random bytes behind every round.
const SeedSize = 32

// MaxWinners is the number of ranked prizes per round.
const MaxWinners = 3

var (
	ErrCommitmentMismatch = errors.New("revealed seed does not match the commitment")
	ErrWinnersMismatch    = errors.New("recorded winners do not match the recomputed draw")
	ErrSeedNotRevealed    = errors.New("seed has not been revealed")
)

// NewSeed returns a hex seed and its hex SHA-256 commitment.
func NewSeed() (seed, commitment string, err error) {
	raw := make([]byte, SeedSize)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("read random seed: %w", err)
	}
	return hex.EncodeToString(raw), Commit(raw), nil
}

// Commit is the published commitment of seed.
func Commit(seed []byte) string {
	sum := sha256.Sum256(seed)
	return hex.EncodeToString(sum[:])
}

// DRBG is a deterministic byte stream: block i is HMAC-SHA256(seed, i).
type DRBG struct {
	key     []byte
	counter uint64
	buf     []byte
}

// NewDRBG keys a generator with seed.
func NewDRBG(seed []byte) *DRBG {
	return &DRBG{key: slices.Clone(seed)}
}

func (d *DRBG) next() uint64 {
	if len(d.buf) < 8 {
		mac := hmac.New(sha256.New, d.key)
		var block [8]byte
		binary.BigEndian.PutUint64(block[:], d.counter)
		mac.Write(block[:])
		d.counter++
		d.buf = mac.Sum(nil)
	}
	v := binary.BigEndian.Uint64(d.buf[:8])
	d.buf = d.buf[8:]
	return v
}

// Uint64n returns a uniform value in [0, n). It panics when n is zero.
func (d *DRBG) Uint64n(n uint64) uint64 {
	if n == 0 {
		panic("draw: Uint64n with n == 0")
	}
	// Reject the top partial range so every residue is equally likely.
	limit := ^uint64(0) - (^uint64(0) % n)
	for {
		v := d.next()
		if v < limit {
			return v % n
		}
	}
}

// SortEntries returns the positive entries ordered by account id bytes.
func SortEntries(entries []domain.RoundEntry) []domain.RoundEntry {
	out := make([]domain.RoundEntry, 0, len(entries))
	for _, e := range entries {
		if e.EntryCount > 0 {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b domain.RoundEntry) int {
		return bytes.Compare(a.AccountID[:], b.AccountID[:])
	})
	return out
}

// SelectWinners picks up to max distinct accounts, each with probability
// proportional to its remaining entry count, in rank order.
func SelectWinners(seed []byte, entries []domain.RoundEntry, max int) []uuid.UUID {
	pool := SortEntries(entries)
	rng := NewDRBG(seed)

	var winners []uuid.UUID
	for len(winners) < max && len(pool) > 0 {
		total := 0
		for _, e := range pool {
			total += e.EntryCount
		}
		ticket := int(rng.Uint64n(uint64(total)))
		for i, e := range pool {
			if ticket < e.EntryCount {
				winners = append(winners, e.AccountID)
				pool = slices.Delete(pool, i, i+1)
				break
			}
			ticket -= e.EntryCount
		}
	}
	return winners
}

// Verify recomputes a closed round from its revealed seed and entries.
func Verify(round domain.PrizeRound) error {
	if round.Seed == "" {
		return ErrSeedNotRevealed
	}
	seed, err := hex.DecodeString(round.Seed)
	if err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	if !hmac.Equal([]byte(Commit(seed)), []byte(round.SeedCommitment)) {
		return ErrCommitmentMismatch
	}

	expected := SelectWinners(seed, round.Entries, MaxWinners)
	if len(expected) != len(round.Winners) {
		return fmt.Errorf("%w: expected %d winners, recorded %d", ErrWinnersMismatch, len(expected), len(round.Winners))
	}
	split := Split(round.PoolSUP, len(expected))
	for i, w := range round.Winners {
		if w.Rank != i+1 || w.AccountID != expected[i] {
			return fmt.Errorf("%w: rank %d", ErrWinnersMismatch, i+1)
		}
		if !w.PayoutSUP.Equal(split.Payouts[i]) {
			return fmt.Errorf("%w: rank %d payout %s, expected %s", ErrWinnersMismatch, i+1, w.PayoutSUP, split.Payouts[i])
		}
	}
	if !split.Community.Equal(round.CommunitySUP) || !split.Operating.Equal(round.OperatingSUP) || !split.Rollover.Equal(round.RolloverSUP) {
		return fmt.Errorf("%w: pool split", ErrWinnersMismatch)
	}
	return nil
}
