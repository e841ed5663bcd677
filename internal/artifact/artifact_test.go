package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customersCSV = `customer_id,state,total_spent,total_orders,first_ts,churned
c1,SP,150.00,3,2017-01-02 10:00:00,true
c2,SP,50,1,2017-03-04 11:30:00,false
c3,RJ,,0,,false
c4,MG,-1.5,2,2018-01-01 00:00:00,true
`

func decode(t *testing.T, doc string) *Table {
	t.Helper()
	table, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	return table
}

func TestDecode_InfersTypes(t *testing.T) {
	table := decode(t, customersCSV)

	require.Equal(t, 4, table.Len())
	assert.Equal(t, []string{"customer_id", "state", "total_spent", "total_orders", "first_ts", "churned"}, table.ColumnNames())

	want := []Type{TypeString, TypeString, TypeFloat, TypeInteger, TypeTimestamp, TypeBoolean}
	for i, c := range table.Columns {
		assert.Equalf(t, want[i], c.Type, "column %s", c.Name)
	}
}

func TestDecode_EmptyDocument(t *testing.T) {
	table := decode(t, "")
	assert.True(t, table.Empty())
	assert.Empty(t, table.Columns)
}

func TestColumnView_Aggregates(t *testing.T) {
	table := decode(t, customersCSV)

	spent, ok := table.Column("total_spent")
	require.True(t, ok)
	assert.InDelta(t, 198.5, spent.Sum(), 1e-9)
	assert.Equal(t, 1, spent.NullCount())
	assert.Equal(t, 1, spent.CountWhere(func(v float64) bool { return v < 0 }))

	state, ok := table.Column("state")
	require.True(t, ok)
	assert.Equal(t, 3, state.Distinct())

	churned, ok := table.Column("churned")
	require.True(t, ok)
	assert.InDelta(t, 2, churned.Sum(), 1e-9)

	_, ok = table.Column("missing")
	assert.False(t, ok)
}

func TestColumnView_DistinctFoldsNumericSpellings(t *testing.T) {
	table := decode(t, "v\n1\n1.0\n1.00\n2\n\n")
	col, _ := table.Column("v")
	assert.Equal(t, 2, col.Distinct())
}

func TestColumnView_NumbersStopsEarly(t *testing.T) {
	table := decode(t, customersCSV)
	col, _ := table.Column("total_orders")

	var seen []int
	for i := range col.Numbers() {
		seen = append(seen, i)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []int{0, 1}, seen)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := &Artifact{Name: "customers_all", Table: decode(t, customersCSV)}
	require.NoError(t, a.Save(dir))
	assert.Equal(t, filepath.Join(dir, "customers_all.csv"), a.Path)

	loaded, err := Load(a.Path)
	require.NoError(t, err)
	assert.Equal(t, "customers_all", loaded.Name)
	assert.Equal(t, a.Rows, loaded.Rows)
	assert.Equal(t, a.Columns, loaded.Columns)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSave_RejectsBadName(t *testing.T) {
	a := &Artifact{Name: "../escape", Table: NewTable(nil, nil)}
	assert.Error(t, a.Save(t.TempDir()))
	assert.Error(t, ValidateName(""))
	assert.NoError(t, ValidateName("revenue_total"))
}

func TestEncode_Golden(t *testing.T) {
	table := NewTable(
		[]Column{{Name: "customer_id"}, {Name: "state"}, {Name: "total_spent"}, {Name: "churned"}},
		[][]string{
			{"c1", "SP", "150.5", "1"},
			{"c2", "RJ", "", "0"},
			{"c3, jr", "MG", "20", "0"},
		},
	)
	var buf bytes.Buffer
	require.NoError(t, table.Encode(&buf))

	g := goldie.New(t)
	g.Assert(t, "encode_customers", buf.Bytes())
}

func TestWriteParquet_ProducesParquetFile(t *testing.T) {
	table := decode(t, customersCSV)
	path := filepath.Join(t.TempDir(), "customers_all"+ParquetExtension)
	require.NoError(t, table.WriteParquetFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestParquetNames_Sanitized(t *testing.T) {
	names := parquetNames([]Column{{Name: "total spent"}, {Name: "total-spent"}, {Name: ""}})
	assert.Equal(t, []string{"total_spent", "total_spent_1", "col_2"}, names)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "12", FormatValue(int64(12)))
	assert.Equal(t, "1.25", FormatValue(1.25))
	assert.Equal(t, "abc", FormatValue([]byte("abc")))
	assert.Equal(t, "true", FormatValue(true))
}

func TestNameFromPath(t *testing.T) {
	assert.Equal(t, "orders_all", NameFromPath("results/output_csvs/orders_all.csv"))
	assert.Equal(t, "orders_all", NameFromPath(PathFor("out", "orders_all")))
}
