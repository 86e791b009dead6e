package testdata

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/jask/recordboard/internal/database/repository"
	"github.com/jask/recordboard/internal/period"
	"github.com/jask/recordboard/internal/service"
)

// Repos bundles repos used by Seed.
type Repos struct {
	Collections *repository.CollectionRepo
	Categories  *repository.CategoryRepo
	Records     *repository.RecordRepo
}

// SeedOptions controls sample generation. A zero Seed draws a random one;
// a zero Now uses the current time.
type SeedOptions struct {
	Count      int
	Seed       uint64
	Now        time.Time
	Collection string
}

// DefaultCount is used when SeedOptions.Count is not positive.
const DefaultCount = 60

// Days is how far back sample dates reach.
const Days = 180

type template struct {
	title    string
	category string
	min, max int64 // cents, sign included
	weight   int
}

var templates = []template{
	{"SALARY ACME PTY LTD", "Income", 310000, 330000, 2},
	{"RENT PAYMENT", "Housing", -190000, -180000, 2},
	{"WOOLWORTHS", "Groceries", -18000, -2500, 8},
	{"ALDI STORES", "Groceries", -9000, -1500, 5},
	{"UBER EATS* SUSHI", "Eating Out", -6500, -1800, 5},
	{"CORNER CAFE", "Eating Out", -1400, -450, 6},
	{"MYKI TOP UP", "Transport", -5000, -1000, 3},
	{"SHELL FUEL", "Transport", -9000, -4000, 2},
	{"POWERSHOP ENERGY", "Utilities", -21000, -9000, 1},
	{"SPOTIFY", "Subscriptions", -1399, -1199, 1},
	{"NETFLIX.COM", "Subscriptions", -2299, -1899, 1},
	{"CHEMIST WAREHOUSE", "Health", -6000, -800, 2},
	{"CINEMA NOVA", "Leisure", -4000, -1800, 2},
	{"TRANSFER TO SAVINGS", "Savings", -50000, -20000, 1},
	{"MARKET STALL", "", -3000, -500, 3},
}

var sampleNotes = []string{"split with flatmate", "reimbursable", "gift", "one-off"}

// Seed inserts opts.Count random records into the sample collection and
// returns how many were inserted. Generated records that collide with
// existing ones are skipped. With the same Seed and Now the same records
// are produced.
func Seed(ctx context.Context, repos Repos, opts SeedOptions) (int, error) {
	count := opts.Count
	if count <= 0 {
		count = DefaultCount
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := period.DayIn(now, now.Location())
	name := opts.Collection
	if name == "" {
		name = "Sample"
	}

	coll := repository.Collection{ID: repository.CollectionID(name), Name: name, Kind: "sample"}
	if err := repos.Collections.Upsert(ctx, coll); err != nil {
		return 0, fmt.Errorf("seed collection: %w", err)
	}
	catIDs, err := categoryIDs(ctx, repos.Categories)
	if err != nil {
		return 0, err
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	total := 0
	for _, t := range templates {
		total += t.weight
	}

	inserted := 0
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		t := pick(rng, total)
		date := today.AddDate(0, 0, -rng.IntN(Days))
		cents := t.min + rng.Int64N(t.max-t.min+1)
		rec := repository.Record{
			ID:           uuid.NewString(),
			CollectionID: coll.ID,
			Date:         date,
			Title:        t.title,
			AmountCents:  cents,
			Status:       repository.StatusActive,
			Fingerprint:  service.Fingerprint(coll.ID, date, cents, t.title),
		}
		if id, ok := catIDs[t.category]; ok && rng.IntN(10) < 8 {
			rec.CategoryID = &id
		}
		if rng.IntN(12) == 0 {
			note := sampleNotes[rng.IntN(len(sampleNotes))]
			rec.Notes = &note
		}
		if err := repos.Records.Insert(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func pick(rng *rand.Rand, total int) template {
	n := rng.IntN(total)
	for _, t := range templates {
		if n < t.weight {
			return t
		}
		n -= t.weight
	}
	return templates[len(templates)-1]
}

func categoryIDs(ctx context.Context, repo *repository.CategoryRepo) (map[string]string, error) {
	out := map[string]string{}
	if repo == nil {
		return out, nil
	}
	cats, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		out[c.Name] = c.ID
	}
	return out, nil
}
