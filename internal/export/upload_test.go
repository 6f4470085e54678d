package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/dfs-coverage/internal/optimizer"
	"github.com/stitts-dev/dfs-coverage/internal/types"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func createTestSet(t *testing.T) *optimizer.LineupSet {
	t.Helper()
	players := []struct {
		id     int64
		name   string
		team   string
		salary int
	}{
		{1, "Allen", "BUF", 9000},
		{2, "Diggs", "BUF", 8000},
		{3, "Cook", "BUF", 7000},
		{4, "Mahomes", "KC", 8500},
		{5, "Kelce", "KC", 7500},
		{6, "Pacheco", "KC", 6000},
		{7, "Butker", "KC", 5000},
	}
	var rows []types.Draftable
	for _, p := range players {
		rows = append(rows, types.Draftable{
			PlayerID: p.id, Name: p.name, Team: p.team, RosterSlotID: 512,
			Salary: p.salary, Projection: types.Float(10),
		})
		if p.id == 1 {
			rows = append(rows, types.Draftable{
				PlayerID: p.id, Name: p.name, Team: p.team, RosterSlotID: 511,
				Salary: p.salary * 3 / 2, Projection: types.Float(15),
			})
		}
	}

	constraints, err := optimizer.GetConstraintsForContest(optimizer.ContestShowdown)
	require.NoError(t, err)
	pool, err := optimizer.NewEntityPool(rows, constraints)
	require.NoError(t, err)
	result, err := optimizer.LineupSearch(context.Background(), pool, optimizer.SearchOptions{Logger: logrus.NewEntry(quietLogger())})
	require.NoError(t, err)
	require.NotEmpty(t, result.Lineups)

	cov := mat.NewDense(pool.Len(), pool.Len(), nil)
	for i := 0; i < pool.Len(); i++ {
		cov.Set(i, i, 1)
	}
	set, err := optimizer.NewLineupSet(pool, result.Lineups, cov)
	require.NoError(t, err)
	return set
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestUploadExporter_SingleBatch(t *testing.T) {
	set := createTestSet(t)
	exporter := NewUploadExporter(500, quietLogger())

	rows := make([]int, set.Len())
	for i := range rows {
		rows[i] = i
	}
	data, err := exporter.ExportBatch(set, rows, 0)
	require.NoError(t, err)

	records := readCSV(t, data)
	require.Len(t, records, set.Len()+1)
	assert.Equal(t, []string{"CPT", "FLEX", "FLEX", "FLEX", "FLEX", "FLEX"}, records[0])
	for _, record := range records[1:] {
		assert.Equal(t, "Allen (1)", record[0], "captain column comes first")
		for _, cell := range record[1:] {
			assert.NotEqual(t, "Allen (1)", cell)
		}
	}
}

func TestUploadExporter_ChunksAtBatchLimit(t *testing.T) {
	set := createTestSet(t)
	exporter := NewUploadExporter(0, quietLogger())
	assert.Equal(t, MaxBatchSize, exporter.BatchSize())

	rows := make([]int, 1203)
	for i := range rows {
		rows[i] = i % set.Len()
	}
	assert.Equal(t, 3, exporter.NumBatches(len(rows)))

	batches, err := exporter.ExportAll(set, rows)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	total := 0
	for i, batch := range batches {
		records := readCSV(t, batch)
		lineups := len(records) - 1
		assert.LessOrEqual(t, lineups, MaxBatchSize, fmt.Sprintf("batch %d", i))
		total += lineups
	}
	assert.Equal(t, len(rows), total, "no lineup is dropped")

	_, err = exporter.ExportBatch(set, rows, 3)
	assert.ErrorIs(t, err, ErrBatchOutOfRange)
}

func TestUploadExporter_Errors(t *testing.T) {
	set := createTestSet(t)
	exporter := NewUploadExporter(2, quietLogger())

	_, err := exporter.ExportBatch(set, nil, 0)
	assert.ErrorIs(t, err, ErrNoLineups)

	_, err = exporter.ExportAll(set, nil)
	assert.ErrorIs(t, err, ErrNoLineups)

	_, err = exporter.ExportBatch(set, []int{0, set.Len()}, 0)
	assert.ErrorIs(t, err, optimizer.ErrDimensionMismatch)

	_, err = exporter.ExportBatch(set, []int{0}, -1)
	assert.ErrorIs(t, err, ErrBatchOutOfRange)
}
