package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"dscengine/core/events"
)

func TestExportWritesParquet(t *testing.T) {
	dir := t.TempDir()
	idx := openIndexer(t, filepath.Join(dir, "events.sqlite"))
	idx.Emit(events.CollateralDeposited{User: alice, Token: weth, Amount: uint256.NewInt(10)})
	idx.Emit(events.CollateralDeposited{User: bob, Token: weth, Amount: uint256.NewInt(4)})
	idx.Emit(events.DscMinted{User: alice, Amount: uint256.NewInt(5), Debt: uint256.NewInt(5)})

	path := filepath.Join(dir, "deposits.parquet")
	n, err := idx.Export(context.Background(), path, Query{Type: events.TypeCollateralDeposited})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(exportRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(2), pr.GetNumRows())

	rows := make([]exportRow, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(1), rows[0].Sequence)
	require.Equal(t, events.TypeCollateralDeposited, rows[1].Type)
	require.Contains(t, rows[1].Attributes, `"amount":"4"`)
}
