package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "ownercal/internal/domain/availability"
	"ownercal/internal/domain/shared/daterange"
)

type CalendarRepository struct {
	col *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	return &CalendarRepository{col: db.Collection("agg_property_calendar")}
}

func (r *CalendarRepository) Calendar(ctx context.Context, id domain.PropertyID) (*domain.PropertyCalendar, error) {
	var doc calendarDocument
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toAggregate()
}

// Save upserts cal guarded by its version; a stale version surfaces as
// domain.ErrConcurrentUpdate.
func (r *CalendarRepository) Save(ctx context.Context, cal *domain.PropertyCalendar) error {
	doc := newCalendarDocument(cal)
	filter := bson.M{"_id": doc.ID, "version": cal.Version}
	doc.Version = cal.Version + 1
	update := bson.M{"$set": doc}
	res, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domain.ErrConcurrentUpdate
	}
	cal.Version = doc.Version
	return nil
}

type calendarDocument struct {
	ID         string            `bson:"_id"`
	BasePrice  int               `bson:"base_price"`
	Bookings   []bookingDocument `bson:"bookings"`
	Blocks     []blockDocument   `bson:"blocks"`
	PriceRules []ruleDocument    `bson:"price_rules"`
	Version    int64             `bson:"version"`
	UpdatedAt  time.Time         `bson:"updated_at"`
}

type bookingDocument struct {
	Reference string `bson:"reference"`
	CheckIn   string `bson:"check_in"`
	CheckOut  string `bson:"check_out"`
}

type blockDocument struct {
	Date      string    `bson:"date"`
	Comment   *string   `bson:"comment"`
	CreatedAt time.Time `bson:"created_at"`
}

type ruleDocument struct {
	StartDate string    `bson:"start_date"`
	EndDate   string    `bson:"end_date"`
	Price     int       `bson:"price"`
	CreatedAt time.Time `bson:"created_at"`
}

func newCalendarDocument(cal *domain.PropertyCalendar) calendarDocument {
	doc := calendarDocument{
		ID:        string(cal.PropertyID),
		BasePrice: cal.BasePrice,
		Version:   cal.Version,
		UpdatedAt: time.Now().UTC(),
	}
	for _, b := range cal.Bookings {
		doc.Bookings = append(doc.Bookings, bookingDocument{Reference: b.Reference, CheckIn: b.CheckIn.String(), CheckOut: b.CheckOut.String()})
	}
	for _, b := range cal.SortedBlocks() {
		doc.Blocks = append(doc.Blocks, blockDocument{Date: b.Date.String(), Comment: b.Comment, CreatedAt: b.CreatedAt})
	}
	for _, rule := range cal.PriceRules {
		doc.PriceRules = append(doc.PriceRules, ruleDocument{
			StartDate: rule.Range.Start.String(),
			EndDate:   rule.Range.End.String(),
			Price:     rule.Price,
			CreatedAt: rule.CreatedAt,
		})
	}
	return doc
}

func (d calendarDocument) toAggregate() (*domain.PropertyCalendar, error) {
	cal := domain.NewCalendar(domain.PropertyID(d.ID), d.BasePrice)
	cal.Version = d.Version
	for _, b := range d.Bookings {
		in, err := daterange.Parse(b.CheckIn)
		if err != nil {
			return nil, err
		}
		out, err := daterange.Parse(b.CheckOut)
		if err != nil {
			return nil, err
		}
		cal.Bookings = append(cal.Bookings, domain.Booking{Reference: b.Reference, CheckIn: in, CheckOut: out})
	}
	for _, b := range d.Blocks {
		date, err := daterange.Parse(b.Date)
		if err != nil {
			return nil, err
		}
		cal.Blocks[date] = domain.ManualBlock{Date: date, Comment: b.Comment, CreatedAt: b.CreatedAt}
	}
	for _, rule := range d.PriceRules {
		start, err := daterange.Parse(rule.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := daterange.Parse(rule.EndDate)
		if err != nil {
			return nil, err
		}
		cal.PriceRules = append(cal.PriceRules, domain.PriceRule{
			Range:     daterange.DateRange{Start: start, End: end},
			Price:     rule.Price,
			CreatedAt: rule.CreatedAt,
		})
	}
	return cal, nil
}

var _ domain.Repository = (*CalendarRepository)(nil)
