package generator

import (
	"context"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaswdr/faker"
	"github.com/jittakal/kafpartitionkey/internal/config"
	"github.com/jittakal/kafpartitionkey/internal/events"
	"github.com/jittakal/kafpartitionkey/pkg/partitionkey"
	"go.uber.org/zap"
)

// Key shapes the generator can emit
const (
	ShapeExplicit  = "explicit"
	ShapeObject    = "object"
	ShapeOversized = "oversized"
	ShapeFalsy     = "falsy"
	ShapeMissing   = "missing"
)

// seededEpoch anchors createdAt for seeded runs
var seededEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator generates fake order records covering every partition key shape
type Generator struct {
	config *config.GeneratorConfig
	faker  faker.Faker
	ids    io.Reader // nil draws ids from crypto/rand
	now    func() time.Time
	logger *zap.Logger
	seq    int
}

// Option configures a Generator
type Option func(*Generator)

// WithClock sets the source of createdAt timestamps
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a new record generator. A non-zero Seed makes the
// whole record stream reproducible, timestamps included: createdAt then
// starts at a fixed epoch and advances by IntervalMs per record.
func NewGenerator(config config.GeneratorConfig, logger *zap.Logger, opts ...Option) *Generator {
	g := &Generator{
		config: &config,
		faker:  faker.New(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	if config.Seed != 0 {
		g.faker = faker.NewWithSeed(rand.NewSource(config.Seed))
		g.ids = rand.New(rand.NewSource(config.Seed))
		g.now = g.syntheticTime
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run emits records on out every IntervalMs until ctx is done or Count
// records have been emitted. out is closed on return.
func (g *Generator) Run(ctx context.Context, out chan<- events.Record) error {
	defer close(out)

	ticker := time.NewTicker(time.Duration(g.config.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for emitted := 0; g.config.Count == 0 || emitted < g.config.Count; emitted++ {
		select {
		case <-ctx.Done():
			g.logger.Info("Stopping record generation", zap.Int("emitted", emitted))
			return ctx.Err()
		case <-ticker.C:
		}

		record, shape := g.Next()
		g.logger.Debug("Generated record",
			zap.String("origin", record.Origin),
			zap.String("shape", shape),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- record:
		}
	}

	g.logger.Info("Record generation complete", zap.Int("count", g.config.Count))
	return nil
}

// Next generates one order record and reports the partitionKey shape it used
func (g *Generator) Next() (events.Record, string) {
	g.seq++

	shape := g.pickShape()
	customerID := g.generateCustomerID()

	order := partitionkey.NewObject()
	switch shape {
	case ShapeExplicit:
		order.Set(partitionkey.FieldName, customerID)
	case ShapeObject:
		order.Set(partitionkey.FieldName, partitionkey.NewObject(
			partitionkey.Pair{Key: "region", Value: g.faker.Address().City()},
			partitionkey.Pair{Key: "customerId", Value: customerID},
		))
	case ShapeOversized:
		order.Set(partitionkey.FieldName, g.oversizedKey())
	case ShapeFalsy:
		order.Set(partitionkey.FieldName, g.falsyKey())
	}

	order.Set("orderId", g.newID())
	order.Set("customer", partitionkey.NewObject(
		partitionkey.Pair{Key: "id", Value: customerID},
		partitionkey.Pair{Key: "name", Value: g.faker.Person().Name()},
		partitionkey.Pair{Key: "email", Value: g.faker.Internet().Email()},
	))
	order.Set("items", g.faker.IntBetween(1, 10))
	order.Set("amount", float64(g.faker.IntBetween(100, 500000))/100)
	order.Set("currency", g.randomCurrency())
	order.Set("createdAt", g.now().UTC().Format(time.RFC3339))

	return events.Record{
		Origin: "generator:" + strconv.Itoa(g.seq),
		Value:  order,
	}, shape
}

// pickShape draws a shape according to the configured weights
func (g *Generator) pickShape() string {
	mix := g.config.Mix
	shapes := []string{ShapeExplicit, ShapeObject, ShapeOversized, ShapeFalsy, ShapeMissing}
	weights := []int{mix.Explicit, mix.Object, mix.Oversized, mix.Falsy, mix.Missing}

	total := mix.Total()
	if total <= 0 {
		return ShapeMissing
	}

	pick := g.faker.IntBetween(1, total)
	cumulative := 0

	for i, weight := range weights {
		cumulative += weight
		if pick <= cumulative {
			return shapes[i]
		}
	}

	return ShapeMissing
}

// Helper functions for generating realistic data

func (g *Generator) generateCustomerID() string {
	return "C" + g.newID()[0:8]
}

func (g *Generator) newID() string {
	if g.ids == nil {
		return uuid.NewString()
	}
	id, err := uuid.NewRandomFromReader(g.ids)
	if err != nil {
		// math/rand readers never fail
		panic(err)
	}
	return id.String()
}

func (g *Generator) syntheticTime() time.Time {
	return seededEpoch.Add(time.Duration(g.seq) * time.Duration(g.config.IntervalMs) * time.Millisecond)
}

func (g *Generator) oversizedKey() string {
	var sb strings.Builder
	for sb.Len() <= partitionkey.MaxPartitionKeyLength {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(g.faker.Lorem().Sentence(8))
	}
	return sb.String()
}

func (g *Generator) falsyKey() any {
	falsy := []any{"", 0.0, false, nil}
	return falsy[g.faker.IntBetween(0, len(falsy)-1)]
}

func (g *Generator) randomCurrency() string {
	currencies := []string{"USD", "EUR", "GBP", "INR", "JPY"}
	return currencies[g.faker.IntBetween(0, len(currencies)-1)]
}
