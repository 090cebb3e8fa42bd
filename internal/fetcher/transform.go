package fetcher

import (
	"go.uber.org/zap"
)

// Sheet formats accepted by Transform.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const logSampleRows = 5

// Transform parses a payload into records. It never fails: an absent payload,
// an unknown format or malformed content all yield an empty slice and a log line.
func Transform(p *Payload, format string) []Record {
	log := zap.L().With(zap.String("component", "transform"))

	if p == nil {
		log.Warn("transform: no data received")
		return []Record{}
	}

	var (
		records []Record
		err     error
	)
	switch format {
	case FormatCSV, "":
		records, err = ParseCSV(p.Body)
	case FormatXLSX:
		records, err = ParseXLSX(p.Body)
	default:
		log.Error("transform: unsupported sheet format", zap.String("format", format))
		return []Record{}
	}
	if err != nil {
		log.Error("transform: failed to parse sheet", zap.String("format", format), zap.Error(err))
		return []Record{}
	}
	if records == nil {
		records = []Record{}
	}

	log.Info("transform: parsed sheet", zap.Int("records", len(records)))
	for i, r := range records {
		if i >= logSampleRows {
			break
		}
		log.Info("transform: sample record", zap.Int("row", i+1), zap.Any("values", r.Map()))
	}

	return records
}
