package journal

import (
	"time"

	"main/internal/events"

	"main/pkg/conn"
	"main/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// EventRecord is the persisted form of one domain event. Decimals are stored
// as strings to keep full precision.
type EventRecord struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Type          string `gorm:"index;size:32"`
	ClientOrderID string `gorm:"index;size:64"`
	OrderID       string `gorm:"size:64"`
	Reason        string
	FillQty       string `gorm:"size:64"`
	FillPrice     string `gorm:"size:64"`
	FilledQty     string `gorm:"size:64"`
	LeavesQty     string `gorm:"size:64"`
	Balances      string
	TsNano        int64 `gorm:"index"`
	CreatedAt     time.Time
}

func (EventRecord) TableName() string {
	return "order_events"
}

// Journal persists every domain event, then forwards it to the next sink.
// It is meant to run behind the event queue, off the translation hot path.
type Journal struct {
	db   *gorm.DB
	next events.Sink
}

func New(client *conn.Client, next events.Sink) (*Journal, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "journal")
	}
	if err := client.DB().AutoMigrate(&EventRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate order_events")
	}
	return &Journal{db: client.DB(), next: next}, nil
}

// Emit persists the event and forwards it. A failed write is logged, the
// event still reaches the next sink.
func (j *Journal) Emit(ev events.Event) {
	rec := recordFromEvent(ev)
	if err := j.db.Create(&rec).Error; err != nil {
		logs.Errorf("journal: persist %s for %s: %v", ev.Type, ev.ClientOrderID, err)
	}
	if j.next != nil {
		j.next.Emit(ev)
	}
}

// OrderHistory returns every persisted event for one client order id, in
// insertion order.
func (j *Journal) OrderHistory(clientOrderID string) ([]EventRecord, error) {
	var records []EventRecord
	err := j.db.
		Where("client_order_id = ?", clientOrderID).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrapf(err, "order history for %s", clientOrderID)
	}
	return records, nil
}

// Recent returns the latest persisted events, newest first.
func (j *Journal) Recent(limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []EventRecord
	if err := j.db.Order("id desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "recent events")
	}
	return records, nil
}

func recordFromEvent(ev events.Event) EventRecord {
	rec := EventRecord{
		Type:          ev.Type.String(),
		ClientOrderID: ev.ClientOrderID,
		OrderID:       ev.OrderID,
		Reason:        ev.Reason,
		TsNano:        ev.TsNano,
	}
	if !ev.FillQty.IsZero() {
		rec.FillQty = ev.FillQty.String()
	}
	if !ev.FillPrice.IsZero() {
		rec.FillPrice = ev.FillPrice.String()
	}
	if !ev.FilledQty.IsZero() {
		rec.FilledQty = ev.FilledQty.String()
	}
	if !ev.LeavesQty.IsZero() {
		rec.LeavesQty = ev.LeavesQty.String()
	}
	if ev.Account != nil {
		if payload, err := sonic.ConfigFastest.MarshalToString(ev.Account.Balances); err == nil {
			rec.Balances = payload
		}
	}
	return rec
}
