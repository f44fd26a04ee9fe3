// Package archive persists resolved orders and confirmed fills to postgres
// for offline analysis. Writes happen on a dedicated goroutine so the event
// path never blocks on the database.
package archive

import (
	"time"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

// OrderRecord is one resolved order row.
type OrderRecord struct {
	ID            uint   `gorm:"primaryKey"`
	CorrelationID string `gorm:"uniqueIndex;size:64"`
	OrderID       uint64 `gorm:"index"`
	Exchange      string `gorm:"size:32"`
	Ticker        string `gorm:"size:32"`
	Side          string `gorm:"size:8"`
	Volume        float64
	Status        string `gorm:"size:16"`
	Reason        string
	UpdatedAt     time.Time
}

// TradeRecord is one confirmed fill row.
type TradeRecord struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   uint64 `gorm:"index"`
	Price     float64
	Volume    float64
	FilledAt  time.Time
	CreatedAt time.Time
}

type entry struct {
	order *schema.Order
	trade *schema.Trade
}

// Archiver implements state.Observer on top of a gorm connection.
type Archiver struct {
	db   *gorm.DB
	ch   chan entry
	done chan struct{}
}

// New migrates the archive tables and starts the write loop.
func New(db *gorm.DB) (*Archiver, error) {
	if err := db.AutoMigrate(&OrderRecord{}, &TradeRecord{}); err != nil {
		return nil, err
	}
	a := &Archiver{
		db:   db,
		ch:   make(chan entry, 256),
		done: make(chan struct{}),
	}
	go a.run()
	return a, nil
}

// OrderResolved enqueues an order row without blocking the event path.
func (a *Archiver) OrderResolved(order schema.Order) {
	select {
	case a.ch <- entry{order: &order}:
	default:
		logs.Errorf("archive queue full, drop order %s", order.CorrelationID)
	}
}

// TradeRecorded enqueues a trade row without blocking the event path.
func (a *Archiver) TradeRecorded(trade schema.Trade) {
	select {
	case a.ch <- entry{trade: &trade}:
	default:
		logs.Errorf("archive queue full, drop trade for order %d", trade.OrderID)
	}
}

// Close flushes queued rows and stops the write loop.
func (a *Archiver) Close() {
	close(a.ch)
	<-a.done
}

func (a *Archiver) run() {
	defer close(a.done)
	for e := range a.ch {
		switch {
		case e.order != nil:
			a.writeOrder(*e.order)
		case e.trade != nil:
			a.writeTrade(*e.trade)
		}
	}
}

func (a *Archiver) writeOrder(order schema.Order) {
	record := OrderRecord{
		CorrelationID: order.CorrelationID,
		OrderID:       order.OrderID,
		Exchange:      order.Exchange,
		Ticker:        order.Ticker,
		Side:          order.Side.String(),
		Volume:        order.Volume,
		Status:        order.Status.String(),
		Reason:        order.Reason,
		UpdatedAt:     time.Now().UTC(),
	}
	// The same order resolves more than once along Pending -> Open -> Closed.
	err := a.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "correlation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"order_id", "status", "reason", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		logs.Errorf("archive order %s: %+v", order.CorrelationID, err)
	}
}

func (a *Archiver) writeTrade(trade schema.Trade) {
	record := TradeRecord{
		OrderID:  trade.OrderID,
		Price:    trade.Price,
		Volume:   trade.Volume,
		FilledAt: trade.Time,
	}
	if err := a.db.Create(&record).Error; err != nil {
		logs.Errorf("archive trade for order %d: %+v", trade.OrderID, err)
	}
}
