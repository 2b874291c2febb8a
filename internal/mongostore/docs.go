package mongostore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/doublejdg/stockroom/internal/model"
)

type accountDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password"`
	Name         string    `bson:"name"`
	Role         string    `bson:"role"`
	Position     string    `bson:"position,omitempty"`
	ImageURI     string    `bson:"imageUri,omitempty"`
	Image        []byte    `bson:"image,omitempty"`
	ImageMIME    string    `bson:"imageMime,omitempty"`
	PushToken    string    `bson:"pushToken,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (d accountDoc) model() model.Account {
	return model.Account{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		Role:         d.Role,
		Position:     d.Position,
		ImageURI:     d.ImageURI,
		PushToken:    d.PushToken,
		CreatedAt:    d.CreatedAt,
	}
}

type itemDoc struct {
	ID        string                         `bson:"_id"`
	Name      string                         `bson:"name"`
	Quantity  int                            `bson:"quantity"`
	Unit      string                         `bson:"unit"`
	Category  string                         `bson:"category"`
	Prices    map[string]primitive.Decimal128 `bson:"prices"`
	Date      string                         `bson:"date"`
	CreatedAt time.Time                      `bson:"createdAt"`
	UpdatedAt time.Time                      `bson:"updatedAt"`
}

func newItemDoc(item model.Item) (itemDoc, error) {
	prices := make(map[string]primitive.Decimal128, len(item.Prices))
	for unit, price := range item.Prices {
		d, err := toDecimal128(price)
		if err != nil {
			return itemDoc{}, err
		}
		prices[unit] = d
	}
	return itemDoc{
		ID:        item.ID,
		Name:      item.Name,
		Quantity:  item.Quantity,
		Unit:      item.Unit,
		Category:  item.Category,
		Prices:    prices,
		Date:      item.Date,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}, nil
}

func (d itemDoc) model() (model.Item, error) {
	prices := make(model.Prices, len(d.Prices))
	for unit, price := range d.Prices {
		p, err := fromDecimal128(price)
		if err != nil {
			return model.Item{}, err
		}
		prices[unit] = p
	}
	return model.Item{
		ID:        d.ID,
		Name:      d.Name,
		Quantity:  d.Quantity,
		Unit:      d.Unit,
		Category:  d.Category,
		Prices:    prices,
		Date:      d.Date,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type reportDoc struct {
	ID        string                `bson:"_id"`
	Name      string                `bson:"name"`
	Type      string                `bson:"type"`
	Quantity  int                   `bson:"quantity"`
	UnitPrice *primitive.Decimal128 `bson:"unitPrice,omitempty"`
	Date      string                `bson:"date"`
	CreatedAt time.Time             `bson:"timestamp"`
	Note      string                `bson:"note,omitempty"`
	Actor     string                `bson:"actor,omitempty"`
}

func newReportDoc(r model.Report) (reportDoc, error) {
	doc := reportDoc{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		Quantity:  r.Quantity,
		Date:      r.Date,
		CreatedAt: r.CreatedAt,
		Note:      r.Note,
		Actor:     r.Actor,
	}
	if r.UnitPrice != nil {
		d, err := toDecimal128(*r.UnitPrice)
		if err != nil {
			return reportDoc{}, err
		}
		doc.UnitPrice = &d
	}
	return doc, nil
}

func (d reportDoc) model() (model.Report, error) {
	r := model.Report{
		ID:        d.ID,
		Name:      d.Name,
		Type:      d.Type,
		Quantity:  d.Quantity,
		Date:      d.Date,
		CreatedAt: d.CreatedAt,
		Note:      d.Note,
		Actor:     d.Actor,
	}
	if d.UnitPrice != nil {
		p, err := fromDecimal128(*d.UnitPrice)
		if err != nil {
			return model.Report{}, err
		}
		r.UnitPrice = &p
	}
	return r, nil
}

type requestDoc struct {
	ID                string    `bson:"_id"`
	ItemID            string    `bson:"itemId"`
	ItemName          string    `bson:"itemName"`
	Category          string    `bson:"category"`
	Quantity          int       `bson:"quantity"`
	Unit              string    `bson:"unit"`
	RequestorName     string    `bson:"requestorName"`
	RequestorUsername string    `bson:"requestorUsername"`
	Status            string    `bson:"status"`
	DecidedBy         string    `bson:"decidedBy,omitempty"`
	CreatedAt         time.Time `bson:"timestamp"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

func newRequestDoc(r model.Request) requestDoc {
	return requestDoc(r)
}

func (d requestDoc) model() model.Request {
	return model.Request(d)
}

type auditDoc struct {
	ID        string    `bson:"_id"`
	Actor     string    `bson:"actor"`
	Action    string    `bson:"action"`
	Details   string    `bson:"details,omitempty"`
	CreatedAt time.Time `bson:"timestamp"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("converting price %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing price %s: %w", v, err)
	}
	return d, nil
}
