package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-coverage/internal/optimizer"
)

// MaxBatchSize is the most lineups the contest platform accepts per upload
const MaxBatchSize = 500

var (
	ErrNoLineups       = errors.New("no lineups to export")
	ErrBatchOutOfRange = errors.New("upload batch out of range")
)

// UploadExporter writes selected lineups in the platform's bulk upload
// format: one column per roster spot, cells formatted as "Name (id)".
type UploadExporter struct {
	batchSize int
	logger    *logrus.Logger
}

// NewUploadExporter clamps batchSize to [1, MaxBatchSize]
func NewUploadExporter(batchSize int, logger *logrus.Logger) *UploadExporter {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &UploadExporter{batchSize: batchSize, logger: logger}
}

func (e *UploadExporter) BatchSize() int { return e.batchSize }

// NumBatches returns how many uploads n lineups need
func (e *UploadExporter) NumBatches(n int) int {
	return (n + e.batchSize - 1) / e.batchSize
}

// Headers repeats each slot name by its required count, in slot order
func Headers(constraints *optimizer.LineupConstraints) []string {
	headers := make([]string, 0, constraints.RosterSize())
	for _, slot := range constraints.Slots() {
		for i := 0; i < slot.Count; i++ {
			headers = append(headers, slot.Slot)
		}
	}
	return headers
}

// ExportBatch writes batch number batch (0-based) of the given rows
func (e *UploadExporter) ExportBatch(set *optimizer.LineupSet, rows []int, batch int) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoLineups
	}
	if batch < 0 || batch >= e.NumBatches(len(rows)) {
		return nil, fmt.Errorf("%w: batch %d of %d", ErrBatchOutOfRange, batch, e.NumBatches(len(rows)))
	}

	from := batch * e.batchSize
	to := from + e.batchSize
	if to > len(rows) {
		to = len(rows)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(Headers(set.Constraints())); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	for _, row := range rows[from:to] {
		if row < 0 || row >= set.Len() {
			return nil, fmt.Errorf("%w: row %d of %d", optimizer.ErrDimensionMismatch, row, set.Len())
		}
		if err := writer.Write(formatLineup(set, row)); err != nil {
			return nil, fmt.Errorf("failed to write lineup %d: %w", row, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"batch":   batch,
		"batches": e.NumBatches(len(rows)),
		"lineups": to - from,
	}).Debug("Exported upload batch")

	return buf.Bytes(), nil
}

// ExportAll writes every batch needed for rows
func (e *UploadExporter) ExportAll(set *optimizer.LineupSet, rows []int) ([][]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoLineups
	}
	batches := make([][]byte, e.NumBatches(len(rows)))
	for b := range batches {
		data, err := e.ExportBatch(set, rows, b)
		if err != nil {
			return nil, err
		}
		batches[b] = data
	}
	return batches, nil
}

func formatLineup(set *optimizer.LineupSet, row int) []string {
	lineup := set.Lineup(row)
	cells := make([]string, len(lineup))
	for i, e := range lineup {
		cells[i] = fmt.Sprintf("%s (%d)", e.Name, e.PlayerID)
	}
	return cells
}
