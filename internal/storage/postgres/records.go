package postgres

import (
	"time"

	"github.com/paramtully/stocker/internal/models"
)

// CandleRecord is a daily candle row. (ticker, date) is the natural key.
type CandleRecord struct {
	ID uint `gorm:"primaryKey"`

	Ticker string    `gorm:"type:text;not null;index:idx_candle_ticker;index:idx_ticker_date,unique"`
	Date   time.Time `gorm:"not null;index:idx_ticker_date,unique"`

	Open  float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`

	Volume int64 `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (CandleRecord) TableName() string {
	return "candle_record"
}

func toCandleRecord(c models.Candle) CandleRecord {
	return CandleRecord{
		Ticker: c.Ticker,
		Date:   c.Date,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}
}

func (r CandleRecord) toModel() models.Candle {
	return models.Candle{
		Ticker: r.Ticker,
		Date:   r.Date,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

// SummaryRecord is an AI-generated article summary row. ArticleURL is the
// natural key; bullet lists are stored as JSON text.
type SummaryRecord struct {
	ID uint `gorm:"primaryKey"`

	ArticleURL string `gorm:"type:text;not null;uniqueIndex:idx_summary_url"`
	Ticker     string `gorm:"type:text;not null;index:idx_summary_ticker"`

	Source      string    `gorm:"type:text"`
	Headline    string    `gorm:"type:text;not null"`
	PublishDate time.Time `gorm:"not null"`

	Summary            string `gorm:"type:text;not null"`
	ImpactAnalysis     string `gorm:"type:text"`
	RecommendedActions string `gorm:"type:text"`
	Sentiment          string `gorm:"type:varchar(10);not null"`

	GeneratedAt time.Time `gorm:"not null"`
	RecordedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (SummaryRecord) TableName() string {
	return "summary_record"
}
